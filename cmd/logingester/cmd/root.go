package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/G-Research/logingester/internal/common"
	"github.com/G-Research/logingester/internal/common/logging"
	"github.com/G-Research/logingester/internal/logingester/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/logingester"
	envPrefix            string = "LOGINGESTER"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "logingester",
		SilenceUsage: true,
		Short:        "Accepts log events over http and writes them to the configured sink in batches",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		serveCmd(),
		migrateDbCmd(),
		loadTestCmd(),
	)

	return cmd
}

// loadConfig reads the configuration and applies its logging settings.  The caller decides how much of it to
// validate.
func loadConfig(cmd *cobra.Command) (configuration.LogIngesterConfiguration, error) {
	var config configuration.LogIngesterConfiguration
	userSpecifiedConfigs, err := cmd.Flags().GetStringSlice(CustomConfigLocation)
	if err != nil {
		return config, errors.WithStack(err)
	}

	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs, envPrefix); err != nil {
		return config, err
	}
	return config, logging.ApplyConfig(config.Logging.Level, config.Logging.Format)
}
