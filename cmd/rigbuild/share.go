package main

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/rigbuild/internal/share"
	"github.com/hyperengineering/rigbuild/internal/types"
	"github.com/spf13/cobra"
)

var (
	shareJSONOutput bool
	shareBaseURL    string
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Encode and decode build share links",
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <hash|link>",
	Short: "Print the active parts of a share hash or builder link",
	Args:  cobra.ExactArgs(1),
	RunE:  runShareDecode,
}

var shareEncodeCmd = &cobra.Command{
	Use:   "encode <category=id>...",
	Short: "Build a share link from category=id pairs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShareEncode,
}

func init() {
	shareCmd.PersistentFlags().BoolVar(&shareJSONOutput, "json", false,
		"Output in JSON format")
	shareEncodeCmd.Flags().StringVar(&shareBaseURL, "base-url", "http://localhost:8080",
		"Base URL of the builder")

	shareCmd.AddCommand(shareDecodeCmd)
	shareCmd.AddCommand(shareEncodeCmd)
}

func runShareDecode(cmd *cobra.Command, args []string) error {
	var (
		active map[types.Category]string
		err    error
	)
	if strings.Contains(args[0], "://") {
		active, err = share.FromLink(args[0])
	} else {
		active, err = share.Decode(args[0])
	}
	if err != nil {
		return err
	}

	if shareJSONOutput {
		return printJSON(cmd.OutOrStdout(), types.SharedBuildResponse{Active: active})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "CATEGORY\tPART")
	for _, c := range types.Categories {
		if id, ok := active[c]; ok {
			fmt.Fprintf(w, "%s\t%s\n", c, id)
		}
	}
	w.Flush()
	return nil
}

func runShareEncode(cmd *cobra.Command, args []string) error {
	active := make(map[types.Category]string, len(args))
	for _, arg := range args {
		cat, id, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return fmt.Errorf("expected category=id, got %q", arg)
		}
		c := types.Category(cat)
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", cat)
		}
		active[c] = id
	}

	hash, err := share.Encode(active)
	if err != nil {
		return err
	}
	link, err := share.Link(shareBaseURL, active)
	if err != nil {
		return err
	}

	if shareJSONOutput {
		return printJSON(cmd.OutOrStdout(), types.ShareResponse{Hash: hash, URL: link})
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}
