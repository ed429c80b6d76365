package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ListenAndServe runs srv until ctx is cancelled, then shuts it down gracefully, giving in-flight requests up to
// shutdownTimeout to complete.  It returns nil on a clean shutdown.
func ListenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrapf(err, "http server on %s failed", srv.Addr)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infof("Stopping http server listening on %s", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrapf(err, "http server on %s did not shut down cleanly", srv.Addr)
	}
	return <-errCh
}
