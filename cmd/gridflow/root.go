package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gridflow",
	Short: "Session-scoped file catalog service",
	Long: `gridflow serves the state engine behind the file catalog dashboard.

Each browser session owns a private, in-memory catalog seeded from a
builtin sample set, a JSON file or a Postgres table. Uploads go through
a simulated transport or to local/S3 object storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令，出错时以非零状态退出。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
}
