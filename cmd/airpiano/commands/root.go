// Package commands implements the airpiano command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/printer"
	"github.com/ayusman/airpiano/internal/store"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "airpiano",
	Short: "airpiano - play a piano drawn over your webcam feed",
	Long: `airpiano draws a keyboard over the mirrored camera image and plays a
note whenever a tracked fingertip enters a key.

Hand landmarks come from a MediaPipe service; notes go to a MIDI output or
an external sample player.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.airpiano/config.yaml)")
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// loadConfig reads the file named by --config, or the default file when it
// exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath())
	}
	if err != nil {
		return nil, newPrinter(cmd).Error(
			"Invalid configuration",
			err.Error(),
			[]string{"Fix the file, or run without --config to use the defaults"},
		)
	}
	return cfg, nil
}

// openStore opens the voice bank database under the data directory.
func openStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, newPrinter(cmd).Error(
			"Failed to open the voice bank database",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is writable", cfg.DataDir)},
		)
	}
	return st, nil
}
