package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// CreateContextWithShutdown returns a context that is cancelled on the first SIGINT or SIGTERM.  A second signal
// falls through to the default handler and terminates the process.
func CreateContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			log.Infof("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx
}
