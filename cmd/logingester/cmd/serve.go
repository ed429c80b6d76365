package cmd

import (
	"github.com/spf13/cobra"

	"github.com/G-Research/logingester/internal/common/app"
	commonconfig "github.com/G-Research/logingester/internal/common/config"
	"github.com/G-Research/logingester/internal/common/logging"
	"github.com/G-Research/logingester/internal/logingester"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the log ingester",
		RunE:  serve,
	}
	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return err
	}
	if err := logging.RegisterMetricsHook(); err != nil {
		return err
	}
	return logingester.Run(app.CreateContextWithShutdown(), config)
}
