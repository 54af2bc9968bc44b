package windowfinder

import "testing"

func TestEligible(t *testing.T) {
	cases := []struct {
		name    string
		types   []string
		states  []string
		class   string
		exclude []string
		want    bool
	}{
		{
			name:  "normal window",
			types: []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			want:  true,
		},
		{
			name:  "dialog",
			types: []string{"_NET_WM_WINDOW_TYPE_DIALOG"},
			want:  true,
		},
		{
			name: "untyped window",
			want: true,
		},
		{
			name:  "dock",
			types: []string{"_NET_WM_WINDOW_TYPE_DOCK"},
			want:  false,
		},
		{
			name:  "desktop",
			types: []string{"_NET_WM_WINDOW_TYPE_DESKTOP"},
			want:  false,
		},
		{
			name:  "normal among other types",
			types: []string{"_NET_WM_WINDOW_TYPE_UTILITY", "_NET_WM_WINDOW_TYPE_NORMAL"},
			want:  true,
		},
		{
			name:   "skip taskbar",
			types:  []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			states: []string{"_NET_WM_STATE_SKIP_TASKBAR"},
			want:   false,
		},
		{
			name:   "skip pager",
			types:  []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			states: []string{"_NET_WM_STATE_SKIP_PAGER"},
			want:   false,
		},
		{
			name:   "hidden",
			types:  []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			states: []string{"_NET_WM_STATE_HIDDEN"},
			want:   false,
		},
		{
			name:   "maximized is fine",
			types:  []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			states: []string{"_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ"},
			want:   true,
		},
		{
			name:    "excluded class",
			types:   []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			class:   "Polybar",
			exclude: []string{"polybar"},
			want:    false,
		},
		{
			name:    "exclusion is case insensitive",
			types:   []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			class:   "firefox",
			exclude: []string{"FIREFOX"},
			want:    false,
		},
		{
			name:    "non-excluded class",
			types:   []string{"_NET_WM_WINDOW_TYPE_NORMAL"},
			class:   "Alacritty",
			exclude: []string{"polybar", "dmenu"},
			want:    true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Eligible(c.types, c.states, c.class, c.exclude); got != c.want {
				t.Errorf("Eligible(%v, %v, %q, %v) = %v, want %v",
					c.types, c.states, c.class, c.exclude, got, c.want)
			}
		})
	}
}
