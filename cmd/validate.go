package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/irreduce/internal/validate"
	"github.com/gnolang/irreduce/reduce"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a module with the built-in structural validator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := reduce.ReadModule(args[0])
		if err != nil {
			return err
		}
		if err := validate.Validate(m); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d instructions)\n", args[0], m.InstructionCount())
		return nil
	},
}
