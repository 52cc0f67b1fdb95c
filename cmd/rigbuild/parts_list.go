package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/spf13/cobra"
)

var listCategory string

var partsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog parts",
	Args:  cobra.NoArgs,
	RunE:  runPartsList,
}

func init() {
	partsListCmd.Flags().StringVar(&listCategory, "category", "",
		"Only list parts of this category, cheapest first")
}

func runPartsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var cat types.Category
	if listCategory != "" {
		cat = types.Category(listCategory)
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q", listCategory)
		}
	}

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	var parts []types.Part
	if cat != "" {
		parts, err = db.PartsByCategory(ctx, cat)
	} else {
		parts, err = db.ListParts(ctx)
	}
	if err != nil {
		return fmt.Errorf("list parts: %w", err)
	}

	if partsJSONOutput {
		return printJSON(cmd.OutOrStdout(), types.PartsResponse{Parts: parts, Total: len(parts)})
	}

	if len(parts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No parts found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tCATEGORY\tBRAND\tMODEL\tPRICE")
	for _, p := range parts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t$%.2f\n", p.ID, p.Category, p.Brand, p.Model, p.PriceUSD)
	}
	w.Flush()

	return nil
}
