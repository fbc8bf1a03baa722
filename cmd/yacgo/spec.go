package main

import (
	"fmt"
	"os"

	"github.com/goodtune/yacgo/internal/specs"
	"github.com/spf13/cobra"
)

// newSpecCmd validates a specification file offline, without a repo or an
// HTTP server — useful in CI before rolling out a spec change.
func newSpecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spec <file>",
		Short: "Validate a specification file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			s, err := specs.Parse(raw, specs.LoadProps{})
			if err != nil {
				return err
			}

			fmt.Printf("spec version %s, %d type(s), %d role(s)\n", s.Version, len(s.Types), len(s.Roles))
			for _, t := range s.Types {
				fmt.Printf("  - %s (%s)\n", t.Name, t.Title)
			}
			return nil
		},
	}
}
