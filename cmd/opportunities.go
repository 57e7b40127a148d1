package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/irreduce/internal"
	"github.com/gnolang/irreduce/internal/ir"
	"github.com/gnolang/irreduce/internal/oracle"
	"github.com/gnolang/irreduce/reduce"
)

var (
	oppFinders []string
	oppSkip    []string
)

// opportunitiesCmd lists what one pass would try, without running an oracle.
var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities <file>",
	Short: "List the reduction opportunities of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := reduce.ReadModule(args[0])
		if err != nil {
			return err
		}

		finders, err := internal.SelectFinders(config.Finders, oppFinders, oppSkip)
		if err != nil {
			return err
		}
		dryRun := oracle.NewAdapter(nil, oracle.PredicateFunc(func(*ir.Module) bool { return false }))
		engine, err := internal.NewEngine(dryRun, finders, logger, internal.Options{})
		if err != nil {
			return err
		}

		cands, _, err := engine.Collect(context.Background(), m)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, internal.FormatOpportunities(cands))
		fmt.Fprintf(out, "%d opportunities\n", len(cands))
		return nil
	},
}

func init() {
	opportunitiesCmd.Flags().StringSliceVar(&oppFinders, "finders", nil, "Only run these finders")
	opportunitiesCmd.Flags().StringSliceVar(&oppSkip, "skip", nil, "Do not run these finders")
}
