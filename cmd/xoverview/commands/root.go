package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoverview/xoverview/internal/config"
	"github.com/xoverview/xoverview/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "xoverview",
		Short: "xoverview - Exposé-style window overview for X11",
		Long: `xoverview shows live thumbnails of every window on the current desktop
in a zoomed-out grid, using the Composite, Damage and Render extensions.
Click a thumbnail or press Enter to switch to that window; Escape
dismisses the overview.

Features:
  • Live window capture via Composite redirection
  • Damage-driven thumbnail refresh
  • Hardware-path scaling through XRender
  • Entrance and exit animations
  • Persistent configuration
  • Optional debug HTTP API`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/xoverview/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("api-port", 0, "debug API port (default is 8460)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("api_port", rootCmd.PersistentFlags().Lookup("api-port"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig builds the config manager and applies flag overrides.
func loadConfig() (*config.Manager, config.Config, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.Get()
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.LogLevel = level
		}
	}
	if viper.IsSet("api_port") {
		if port := viper.GetInt("api_port"); port > 0 {
			cfg.API.Port = port
		}
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return configMgr, cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
