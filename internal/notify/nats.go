package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AzaLess/guesswho/internal/config"
	"github.com/AzaLess/guesswho/internal/game"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const defaultURL = "nats://localhost:4222"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher forwards committed game changes to NATS on
// <prefix>.games.<token>.<type>.
type Publisher struct {
	conn   Conn
	prefix string
}

var _ game.Notifier = (*Publisher)(nil)

func NewPublisher(conn Conn, prefix string) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "guesswho"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Connect dials NATS using the URL and token from cfg.
func Connect(cfg config.Config) (*nats.Conn, error) {
	url := cfg.NATSURL
	if url == "" {
		url = defaultURL
	}
	opts := []nats.Option{
		nats.Name("guesswho"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func (p *Publisher) Subject(n game.Notification) string {
	return fmt.Sprintf("%s.games.%s.%s", p.prefix, n.GameToken, n.Type)
}

func (p *Publisher) Notify(ctx context.Context, n game.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.conn.Publish(p.Subject(n), data); err != nil {
		return fmt.Errorf("publish %s: %w", n.Type, err)
	}
	return nil
}
