package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnolang/irreduce/reduce"
)

var (
	cfgFile string
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "irreduce",
	Short:        "irreduce - shrink IR modules while keeping them valid and interesting",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	return config.Build()
}

func loadConfig() (reduce.Config, error) {
	return reduce.LoadConfig(cfgFile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file (default "+reduce.DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every pass and trial")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(findersCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(opportunitiesCmd)
}
