package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List saved questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		saved, err := st.ListQuestions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, q := range saved {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\tdifficulty %.2f\trubric %d/25\t%s\n",
				q.ID, q.CreatedAt, q.Topic, q.Difficulty, q.RubricTotal, q.Variant)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show LLM usage statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.LLMStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requests:      %d\n", stats.Requests)
		fmt.Fprintf(cmd.OutOrStdout(), "failures:      %d\n", stats.Failures)
		fmt.Fprintf(cmd.OutOrStdout(), "input tokens:  %d\n", stats.InputTokens)
		fmt.Fprintf(cmd.OutOrStdout(), "output tokens: %d\n", stats.OutputTokens)
		return nil
	},
}

func init() {
	questionsCmd.Flags().Int("limit", 20, "Maximum questions to list")
}
