package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xoverview/xoverview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage xoverview configuration",
	Long:  `View and manage xoverview configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current xoverview configuration.`,
	Example: `  # Show configuration as YAML (default)
  xoverview config show

  # Show configuration as JSON
  xoverview config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value.`,
	Example: `  # Set entrance animation duration
  xoverview config set animation.entrance_ms 250

  # Disable animations
  xoverview config set animation.enabled false

  # Set grid padding
  xoverview config set layout.padding 30`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get the log level
  xoverview config get log_level

  # Get grid padding
  xoverview config get layout.padding`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	if err := setConfigKey(&cfg, key, value); err != nil {
		return err
	}
	configMgr.Update(cfg)

	if err := configMgr.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, value)
	return nil
}

func setConfigKey(cfg *config.Config, key, value string) error {
	parseInt := func() (int, error) {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid number: %s", value)
		}
		return n, nil
	}
	parseBool := func() (bool, error) {
		var b bool
		if _, err := fmt.Sscanf(value, "%t", &b); err != nil {
			return false, fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		return b, nil
	}

	switch key {
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		cfg.LogLevel = value
	case "log_pretty":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.LogPretty = b
	case "animation.enabled":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Animation.Enabled = b
	case "animation.entrance_ms":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Animation.EntranceMs = n
	case "animation.exit_ms":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Animation.ExitMs = n
	case "animation.fps":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Animation.FPS = n
	case "layout.padding":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Layout.Padding = uint16(n)
	case "layout.margin":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Layout.Margin = uint16(n)
	case "layout.max_scale":
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		cfg.Layout.MaxScale = f
	case "placeholder_fill":
		n, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid color: %s (use hex like 0x222222)", value)
		}
		cfg.PlaceholderFill = uint32(n)
	case "api.enabled":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.API.Enabled = b
	case "api.port":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.API.Port = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	value, ok := getConfigKey(cfg, key)
	if !ok {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Println(value)
	return nil
}

func getConfigKey(cfg config.Config, key string) (interface{}, bool) {
	switch key {
	case "log_level":
		return cfg.LogLevel, true
	case "log_pretty":
		return cfg.LogPretty, true
	case "animation.enabled":
		return cfg.Animation.Enabled, true
	case "animation.entrance_ms":
		return cfg.Animation.EntranceMs, true
	case "animation.exit_ms":
		return cfg.Animation.ExitMs, true
	case "animation.fps":
		return cfg.Animation.FPS, true
	case "layout.padding":
		return cfg.Layout.Padding, true
	case "layout.margin":
		return cfg.Layout.Margin, true
	case "layout.max_scale":
		return cfg.Layout.MaxScale, true
	case "placeholder_fill":
		return fmt.Sprintf("0x%06x", cfg.PlaceholderFill), true
	case "api.enabled":
		return cfg.API.Enabled, true
	case "api.port":
		return cfg.API.Port, true
	case "exclude_classes":
		return cfg.ExcludeClasses, true
	default:
		return nil, false
	}
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(configMgr.Path())
	return nil
}
