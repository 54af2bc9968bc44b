package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xoverview/xoverview/internal/api"
	"github.com/xoverview/xoverview/internal/logger"
	"github.com/xoverview/xoverview/internal/overview"
	"github.com/xoverview/xoverview/internal/x11"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the window overview",
	Long: `Open the overview: every window on the current desktop is captured
through the Composite extension and laid out as a live thumbnail grid.

The command blocks until a window is selected or the overview is
dismissed.`,
	Example: `  # Show the overview
  xoverview show

  # Show without animations
  xoverview show --no-animation

  # Show with the debug API enabled
  xoverview show --api

  # Show with debug logging
  xoverview show --log-level debug`,
	RunE: runShow,
}

var (
	showNoAnimation bool
	showAPI         bool
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showNoAnimation, "no-animation", false, "skip entrance and exit animations")
	showCmd.Flags().BoolVar(&showAPI, "api", false, "enable the debug HTTP API")
}

func runShow(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if showNoAnimation {
		cfg.Animation.Enabled = false
	}
	log := logger.WithComponent("main")

	conn, err := x11.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer conn.Close()

	log.Info().
		Interface("capabilities", conn.Caps).
		Msg("Extensions negotiated")

	session, err := overview.New(conn, cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if showAPI || cfg.API.Enabled {
		server := api.NewServer(session, configMgr, conn)
		session.SetEventSink(server.Broadcast)
		go func() {
			if err := server.Start(cfg.API.Port); err != nil {
				log.Error().Err(err).Msg("Debug API stopped")
			}
		}()
	}

	// Closing the connection unblocks the event loop; the server frees
	// all our resources when the connection drops.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Interrupted, closing connection")
		conn.Close()
	}()

	selected, err := session.Run()
	if err != nil {
		return fmt.Errorf("overview failed: %w", err)
	}

	if selected != 0 {
		log.Info().Uint32("window", uint32(selected)).Msg("Window selected")
	} else {
		log.Info().Msg("Overview dismissed")
	}
	return nil
}
