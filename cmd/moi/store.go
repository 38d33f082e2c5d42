package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or reset the cumulative store",
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print stored days",
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()
		entries, err := proc.Cumulative().Entries(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var storeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored days",
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closer, err := newProcessor()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := proc.Cumulative().Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cumulative store cleared")
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeShowCmd, storeResetCmd)
}
