// Command kiramate is the operator CLI: schema migrations and user
// accounts, for use before the first admin can log in.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "kiramate",
		Short:        "KiraMate operator tool",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		createUserCmd(),
		setPasswordCmd(),
		hashPasswordCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
