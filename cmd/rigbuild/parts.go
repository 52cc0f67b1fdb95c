package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/config"
	"github.com/spf13/cobra"
)

var (
	partsDBOverride string
	partsJSONOutput bool
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "Manage the parts catalog",
	Long:  "Import and inspect catalog parts without running the server.",
}

func init() {
	partsCmd.PersistentFlags().StringVar(&partsDBOverride, "db", "",
		"Database path (overrides config and RIGBUILD_DB_PATH)")
	partsCmd.PersistentFlags().BoolVar(&partsJSONOutput, "json", false,
		"Output in JSON format")

	partsCmd.AddCommand(partsImportCmd)
	partsCmd.AddCommand(partsListCmd)
}

// openCatalog opens the catalog database from config with optional --db override.
func openCatalog() (*catalog.SQLiteCatalog, error) {
	path := partsDBOverride
	if path == "" {
		dbCfg, err := config.LoadDatabaseConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = dbCfg.Path
	}
	return catalog.NewSQLiteCatalog(path)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
