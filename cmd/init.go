package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/irreduce/reduce"
)

// initCmd: irreduce init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new reducer configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = reduce.DefaultConfigPath
		}
		if err := initConfigurationFile(path); err != nil {
			return fmt.Errorf("error initializing config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", path)
		return nil
	},
}

func initConfigurationFile(path string) error {
	config := reduce.DefaultConfig()
	config.Oracle.Command = []string{"./interesting.sh"}
	config.CacheDir = ".irreduce-cache"
	return reduce.WriteConfig(path, config)
}
