package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/classpoll/pollsession/internal/protocol"
)

// NATSPublisher publishes each event on <prefix>.<session code>.<event type>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("pollsession-mirror"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("nats error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info("nats mirror connected", zap.String("url", nc.ConnectedUrl()), zap.String("prefix", prefix))
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (n *NATSPublisher) Name() string { return "nats" }

// Subject builds the subject for one event. Characters NATS treats as
// token separators or wildcards are replaced in the session code.
func Subject(prefix, code string, typ protocol.EventType) string {
	safe := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(code)
	return fmt.Sprintf("%s.%s.%s", prefix, safe, typ)
}

func (n *NATSPublisher) Publish(_ context.Context, code string, typ protocol.EventType, body []byte) error {
	return n.nc.Publish(Subject(n.prefix, code, typ), body)
}

// Close flushes pending messages before closing the connection.
func (n *NATSPublisher) Close() error {
	return n.nc.Drain()
}
