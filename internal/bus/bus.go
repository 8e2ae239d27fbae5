// Package bus adapts the approval core to NATS JetStream. Inbound subjects
// carry proposals and decisions with at-least-once delivery; outbound
// subjects announce lifecycle transitions best-effort.
package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// StreamName holds every approvals.* subject.
const StreamName = "APPROVALS"

// Conn wraps the NATS connection and its JetStream context.
type Conn struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Connect dials NATS and ensures the approvals stream exists. Reconnects
// forever; the consumers resume automatically after an outage.
func Connect(url string, log *logrus.Logger) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("approvio"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("bus disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening jetstream context: %w", err)
	}

	if err := ensureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Conn{nc: nc, js: js}, nil
}

// ensureStream creates the approvals stream if it does not exist yet.
func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"approvals.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensuring stream %s: %w", StreamName, err)
	}

	return nil
}

// Connected reports whether the underlying connection is up.
func (c *Conn) Connected() bool {
	return c.nc != nil && c.nc.Status() == nats.CONNECTED
}

// JetStream returns the JetStream context.
func (c *Conn) JetStream() nats.JetStreamContext {
	return c.js
}

// Close drains the connection, letting in-flight messages finish.
func (c *Conn) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
	}
}
