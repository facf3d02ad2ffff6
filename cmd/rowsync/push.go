package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

var pushCmd = &cobra.Command{
	Use:   "push <table> <id>",
	Short: "Push one cached row back to the database",
	Long: `Push writes the cached fields of one row to its relational row in a
single transaction. Absent and null fields are left untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		table, id := args[0], args[1]
		if err := client.Push(cmd.Context(), table, id); err != nil {
			return err
		}

		record, err := client.Get(cmd.Context(), table, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pushed %s %s\n", table, id)
		return printYAML(cmd, record)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rowsync.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return printYAML(cmd, cfg)
	},
}

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
