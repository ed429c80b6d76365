package natsutil

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DurableConnection is a NATS connection that reconnects forever.  Publishes made while disconnected fail instead
// of being buffered, so a caller always learns whether its data reached the server.
type DurableConnection struct {
	nc *nats.Conn
}

func DurableConnect(urls string, clientID string) (*DurableConnection, error) {
	nc, err := nats.Connect(urls,
		nats.Name(clientID),
		nats.MaxReconnects(-1),
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to NATS at %s", nc.ConnectedUrl())
		}))
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to NATS at %s", urls)
	}
	return &DurableConnection{nc: nc}, nil
}

func (c *DurableConnection) Publish(subject string, data []byte) error {
	return errors.WithStack(c.nc.Publish(subject, data))
}

// Flush waits up to timeout for the server to process everything published so far.
func (c *DurableConnection) Flush(timeout time.Duration) error {
	return errors.WithStack(c.nc.FlushTimeout(timeout))
}

func (c *DurableConnection) Conn() *nats.Conn {
	return c.nc
}

func (c *DurableConnection) Close() error {
	if err := c.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		c.nc.Close()
		return errors.WithStack(err)
	}
	return nil
}

func (c *DurableConnection) Check() error {
	if c.nc == nil {
		return errors.New("No NATS connection")
	}
	if !c.nc.IsConnected() {
		return errors.Errorf("Not connected to NATS: status %v", c.nc.Status())
	}
	return nil
}
