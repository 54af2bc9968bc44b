package api

import (
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/config"
	"github.com/xoverview/xoverview/internal/logger"
	"github.com/xoverview/xoverview/internal/overview"
	"github.com/xoverview/xoverview/internal/render"
	"github.com/xoverview/xoverview/internal/x11"
)

// Server is the debug HTTP API. It exposes read-only state of a running
// session plus the canvas as a PNG, and streams session events over a
// websocket.
type Server struct {
	router    *mux.Router
	session   *overview.Session
	configMgr *config.Manager
	conn      *x11.Conn
	upgrader  websocket.Upgrader
	log       *zerolog.Logger

	subMu sync.Mutex
	subs  map[chan overview.Event]struct{}
}

// NewServer creates the API server around a session. Call Broadcast from
// the session's event sink to feed the websocket stream.
func NewServer(session *overview.Session, configMgr *config.Manager, conn *x11.Conn) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		session:   session,
		configMgr: configMgr,
		conn:      conn,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local debug tool
			},
		},
		log:  logger.WithComponent("api"),
		subs: make(map[chan overview.Event]struct{}),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/capabilities", s.handleCapabilities).Methods("GET")
	api.HandleFunc("/surfaces", s.handleSurfaces).Methods("GET")
	api.HandleFunc("/canvas.png", s.handleCanvasPNG).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)
}

// Start serves on the given port until the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info().Str("addr", addr).Msg("Debug API listening")
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

// Broadcast fans an event out to all websocket subscribers. Slow
// subscribers drop events rather than stall the session.
func (s *Server) Broadcast(ev overview.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) subscribe() chan overview.Event {
	ch := make(chan overview.Event, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan overview.Event) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.conn.Caps)
}

func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.session.Status())
}

// handleCanvasPNG grabs the live canvas contents. An optional ?width=
// query downscales the image before encoding.
func (s *Server) handleCanvasPNG(w http.ResponseWriter, r *http.Request) {
	canvas := s.session.Canvas()
	if canvas == nil {
		http.Error(w, "no active canvas", http.StatusNotFound)
		return
	}

	img, err := render.Snapshot(s.conn, canvas)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if q := r.URL.Query().Get("width"); q != "" {
		width, err := strconv.Atoi(q)
		if err != nil || width <= 0 {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		img = render.ScaleSnapshot(img, width)
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.log.Warn().Err(err).Msg("PNG encode failed")
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.configMgr.Get())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}
