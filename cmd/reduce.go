package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/irreduce/internal"
	tt "github.com/gnolang/irreduce/internal/types"
	"github.com/gnolang/irreduce/reduce"
)

var (
	outPath      string
	timeout      time.Duration
	trialTimeout time.Duration
	maxPasses    int
	maxTrials    int
	onlyFinders  []string
	skipFinders  []string
	validatorCmd string
	cacheDir     string
	parallel     bool
	noProgress   bool
	clearCache   bool
)

var reduceCmd = &cobra.Command{
	Use:   "reduce <input.spvasm...> [-- test-command...]",
	Short: "Reduce modules while the test command keeps accepting them",
	Long: `Reduce shrinks each input module one pass at a time. A trial is kept only
when it passes the validator and the test command exits with status 0 on it.
The path of the trial file is appended to the test command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, command := splitCommand(cmd, args)
		if len(inputs) == 0 {
			return errors.New("no input files")
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		applyFlags(cmd, &config, command)
		if outPath != "" && len(inputs) > 1 {
			return errors.New("--output requires a single input")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if config.Limits.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.Limits.Timeout)
			defer cancel()
		}

		session, err := reduce.New(config, reduce.Options{
			Only:       onlyFinders,
			Skip:       skipFinders,
			Observer:   newObserver(cmd),
			Logger:     logger,
			ClearCache: clearCache,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing session", zap.Error(err))
			}
		}()

		return runReduce(ctx, cmd, session, inputs)
	},
}

func init() {
	flags := reduceCmd.Flags()
	flags.StringVarP(&outPath, "output", "o", "", "Output path for a single input (\"-\" for stdout)")
	flags.DurationVar(&timeout, "timeout", 0, "Stop the whole reduction after this long")
	flags.DurationVar(&trialTimeout, "trial-timeout", 0, "Timeout for one validator or test run")
	flags.IntVar(&maxPasses, "max-passes", 0, "Stop after this many passes (0 = unlimited)")
	flags.IntVar(&maxTrials, "max-trials", 0, "Stop after this many trials (0 = unlimited)")
	flags.StringSliceVar(&onlyFinders, "finders", nil, "Only run these finders")
	flags.StringSliceVar(&skipFinders, "skip", nil, "Do not run these finders")
	flags.StringVar(&validatorCmd, "validator", "", "\"builtin\" or an external validator command")
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory for the persistent verdict cache")
	flags.BoolVar(&parallel, "parallel", false, "Collect opportunities from finders in parallel")
	flags.BoolVar(&noProgress, "no-progress", false, "Do not draw progress bars")
	flags.BoolVar(&clearCache, "clear-cache", false, "Discard persisted verdicts before reducing")
}

// splitCommand separates input files from the test command after "--".
func splitCommand(cmd *cobra.Command, args []string) (inputs, command []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

func applyFlags(cmd *cobra.Command, config *reduce.Config, command []string) {
	flags := cmd.Flags()
	if len(command) > 0 {
		config.Oracle.Command = command
	}
	if flags.Changed("timeout") {
		config.Limits.Timeout = timeout
	}
	if flags.Changed("trial-timeout") {
		config.Oracle.Timeout = trialTimeout
	}
	if flags.Changed("max-passes") {
		config.Limits.MaxPasses = maxPasses
	}
	if flags.Changed("max-trials") {
		config.Limits.MaxTrials = maxTrials
	}
	if flags.Changed("validator") {
		config.Oracle.Validator = validatorCmd
	}
	if flags.Changed("cache-dir") {
		config.CacheDir = cacheDir
	}
	if flags.Changed("parallel") {
		config.Parallel = parallel
	}
}

func newObserver(cmd *cobra.Command) tt.Observer {
	if noProgress {
		return &internal.ConsoleObserver{Out: cmd.ErrOrStderr(), Verbose: verbose}
	}
	obs := reduce.Observers{reduce.NewProgressObserver(cmd.ErrOrStderr())}
	if verbose {
		obs = append(obs, &internal.ConsoleObserver{Out: cmd.ErrOrStderr(), Verbose: true})
	}
	return obs
}

func runReduce(ctx context.Context, cmd *cobra.Command, session *reduce.Session, inputs []string) error {
	errOut := cmd.ErrOrStderr()

	if len(inputs) == 1 {
		out := outPath
		if out == "" {
			out = reduce.OutputPath(inputs[0])
		}
		res, err := reduce.ProcessFile(ctx, logger, session.Engine, session.Oracle, inputs[0], out)
		if res != nil {
			fmt.Fprintln(errOut, internal.FormatSummary(res))
		}
		if err != nil {
			return err
		}
		if out != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", inputs[0], out)
		}
		return nil
	}

	results, err := reduce.ProcessFiles(ctx, logger, session.Engine, session.Oracle, inputs)
	files := slices.Sorted(maps.Keys(results))
	for _, file := range files {
		fmt.Fprintf(errOut, "%s\n%s\n", file, internal.FormatSummary(results[file]))
	}
	if err != nil {
		return err
	}
	for _, file := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", file, reduce.OutputPath(file))
	}
	return nil
}
