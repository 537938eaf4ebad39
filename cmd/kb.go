package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the local knowledge base",
}

var kbAddCmd = &cobra.Command{
	Use:   "add <topic> <snippet>",
	Short: "Add a knowledge-base snippet for a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		source, _ := cmd.Flags().GetString("source")
		if err := st.AddKBEntry(cmd.Context(), args[0], source, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "added")
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge-base entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListKBEntries(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", e.ID, e.Topic, e.Snippet)
		}
		return nil
	},
}

func init() {
	kbAddCmd.Flags().String("source", "manual", "Source label for the entry")
	kbListCmd.Flags().Int("limit", 50, "Maximum entries to list")
	kbCmd.AddCommand(kbAddCmd)
	kbCmd.AddCommand(kbListCmd)
}
