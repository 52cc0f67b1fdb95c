package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/hyperengineering/rigbuild/internal/validation"
	"github.com/spf13/cobra"
)

var partsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert parts from a JSON seed file",
	Long: `Upsert parts from a JSON seed file. The file holds either a bare array
of parts or an object with a "parts" array. Use "-" to read from stdin.
Invalid parts are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPartsImport,
}

func runPartsImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := readSeed(cmd, args[0])
	if err != nil {
		return err
	}
	parts, err := decodeSeed(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if len(parts) == 0 {
		return errors.New("seed file contains no parts")
	}

	var valid []types.Part
	var problems []string
	for i, p := range parts {
		errs := validation.ValidatePart(p, i)
		if len(errs) == 0 {
			valid = append(valid, p)
			continue
		}
		for _, e := range errs {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field, e.Message))
		}
	}

	upserted := 0
	if len(valid) > 0 {
		db, err := openCatalog()
		if err != nil {
			return err
		}
		defer db.Close()

		upserted, err = db.UpsertParts(ctx, valid)
		if err != nil {
			return fmt.Errorf("upsert parts: %w", err)
		}
	}

	result := types.UpsertResult{
		Upserted: upserted,
		Rejected: len(parts) - len(valid),
		Errors:   problems,
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}

	if partsJSONOutput {
		return printJSON(cmd.OutOrStdout(), result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Upserted %d part(s), rejected %d.\n", result.Upserted, result.Rejected)
	for _, p := range problems {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", p)
	}
	return nil
}

func readSeed(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return data, nil
}

// decodeSeed accepts a bare JSON array of parts or {"parts": [...]}.
func decodeSeed(data []byte) ([]types.Part, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []types.Part
		if err := json.Unmarshal(data, &parts); err != nil {
			return nil, err
		}
		return parts, nil
	}
	var req types.UpsertPartsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return req.Parts, nil
}
