package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/irreduce/internal"
)

var findersCmd = &cobra.Command{
	Use:   "finders",
	Short: "List reduction finders in collection order",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, info := range internal.Finders(config.Finders) {
			state := "enabled"
			if !info.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(out, "%-48s %s\n", info.Name, state)
		}
		return nil
	},
}
