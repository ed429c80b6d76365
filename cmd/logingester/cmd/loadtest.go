package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G-Research/logingester/internal/common/app"
	"github.com/G-Research/logingester/internal/common/logging"
	"github.com/G-Research/logingester/internal/logingester/loadtest"
	"github.com/G-Research/logingester/internal/logingester/model"
)

func loadTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Sends generated access logs to a running log ingester",
		RunE:  runLoadTest,
	}
	cmd.Flags().String("url", "http://localhost:8000", "Base url of the log ingester")
	cmd.Flags().String("token", "dev-token", "Bearer token sent with every request")
	cmd.Flags().Int("workers", 50, "Number of concurrent senders")
	cmd.Flags().Float64("rate", 2000, "Target events per second across all workers (0 for unlimited)")
	cmd.Flags().Duration("duration", time.Minute, "How long to send for")
	cmd.Flags().String("source", "order-service", "Source recorded on every event")
	cmd.Flags().String("environment", string(model.EnvironmentDev), "Environment recorded on every event")
	cmd.Flags().Int64("seed", time.Now().UnixNano(), "Seed for the event generator")
	return cmd
}

func runLoadTest(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	url, err := flags.GetString("url")
	if err != nil {
		return errors.WithStack(err)
	}
	token, err := flags.GetString("token")
	if err != nil {
		return errors.WithStack(err)
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return errors.WithStack(err)
	}
	rate, err := flags.GetFloat64("rate")
	if err != nil {
		return errors.WithStack(err)
	}
	duration, err := flags.GetDuration("duration")
	if err != nil {
		return errors.WithStack(err)
	}
	source, err := flags.GetString("source")
	if err != nil {
		return errors.WithStack(err)
	}
	environment, err := flags.GetString("environment")
	if err != nil {
		return errors.WithStack(err)
	}
	seed, err := flags.GetInt64("seed")
	if err != nil {
		return errors.WithStack(err)
	}

	config := loadtest.Config{
		Url:         url,
		Token:       token,
		Workers:     workers,
		Rate:        rate,
		Duration:    duration,
		Source:      source,
		Environment: model.Environment(environment),
		Seed:        seed,
	}

	log.SetFormatter(&logging.CommandLineFormatter{})
	result, err := loadtest.Run(app.CreateContextWithShutdown(), config, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent=%d accepted=%d overloaded=%d failed=%d elapsed=%s rate=%.1f/s\n",
		result.Sent, result.Accepted, result.Overloaded, result.Failed, result.Elapsed.Round(time.Millisecond), result.Rate())
	return nil
}
