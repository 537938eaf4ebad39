package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"examforge/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "examforge",
	Short: "LLM-driven exam question generator",
	Long: "Examforge generates board-style multiple-choice questions by iteratively\n" +
		"drafting, validating, and scoring candidates against a quality rubric.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides EXAMFORGE_DB)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db (highest priority),
// then the EXAMFORGE_DB env var, then the default data-dir path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if p := os.Getenv("EXAMFORGE_DB"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the store at the resolved path.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	path, err := resolveDBPath(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}
