package main

import (
	"os"

	"github.com/G-Research/logingester/cmd/logingester/cmd"
	"github.com/G-Research/logingester/internal/common/logging"
)

func main() {
	logging.ConfigureLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
