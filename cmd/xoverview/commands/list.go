package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xoverview/xoverview/internal/windowfinder"
	"github.com/xoverview/xoverview/internal/x11"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List windows on the current desktop",
	Long: `List the windows xoverview would show, with their eligibility.

This command connects to the X11 server and queries the window manager's
client list without opening the overview.`,
	Example: `  # List windows in table format (default)
  xoverview list

  # List windows in JSON format
  xoverview list --format json

  # Include windows that would be excluded from the grid
  xoverview list --all`,
	RunE: runList,
}

var (
	listFormat string
	listAll    bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include windows excluded from the grid")
}

func runList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := x11.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer conn.Close()

	finder, err := windowfinder.NewFinder(conn, cfg.ExcludeClasses)
	if err != nil {
		return err
	}

	windows, err := finder.Find()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	if !listAll {
		filtered := windows[:0]
		for _, w := range windows {
			if w.WantsCapture {
				filtered = append(filtered, w)
			}
		}
		windows = filtered
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(windows []windowfinder.WindowInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tTITLE\tCLASS\tGEOMETRY\tGRID")
	fmt.Fprintln(w, "--\t-----\t-----\t--------\t----")

	for _, win := range windows {
		grid := "No"
		if win.WantsCapture {
			grid = "Yes"
		}
		fmt.Fprintf(w, "0x%x\t%s\t%s\t%dx%d+%d+%d\t%s\n",
			uint32(win.ID), win.Title, win.Class,
			win.Rect.Width, win.Rect.Height, win.Rect.X, win.Rect.Y, grid)
	}

	return nil
}
