package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials url and keeps reconnecting for the life of the process.
func ConnectNATS(url string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("dillinger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[events] nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[events] nats reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	return p.nc.Publish(subject, payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}
