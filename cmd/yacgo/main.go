// Package main is the entrypoint for the yacgo CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "yacgo",
		Short: "Yet Another Configurator",
		Long:  "yacgo is a declarative, spec-driven configuration service: operators describe entity types in YAML, end users perform CRUD operations on entities over HTTP, and every mutation becomes a git commit.",
	}

	rootCmd.PersistentFlags().String("config", "", "path to server configuration file (or set YACGO_CONFIG)")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSpecCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("yacgo version %s\n", version)
		},
	}
}
