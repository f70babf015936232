package game

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/AzaLess/guesswho/internal/config"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notification describes a committed state change. It is delivered after the
// transaction that produced it commits, so it never announces rolled-back work.
// Phase and Ended are the game's state right after the event happened.
type Notification struct {
	GameToken string    `json:"game"`
	Type      string    `json:"type"`
	Phase     string    `json:"phase"`
	Ended     bool      `json:"ended"`
	PlayerID  *uint     `json:"player_id,omitempty"`
	FactID    *uint     `json:"fact_id,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier receives committed state changes. Failures are logged and never
// roll back the action.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Engine enforces the phase state machine and keeps the scoring ledger for
// every game in the database.
type Engine struct {
	db       *gorm.DB
	cfg      config.Config
	locks    *gameLocks
	notifier Notifier
	pick     func(n int) int
	now      func() time.Time
	newToken func() string
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithPicker replaces the uniform random choice used for next-fact selection.
// pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) {
		if pick != nil {
			e.pick = pick
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithTokenGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newToken = gen
		}
	}
}

func New(conn *gorm.DB, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		db:       conn,
		cfg:      cfg,
		locks:    newGameLocks(),
		pick:     rand.IntN,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: randomToken,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) publish(ctx context.Context, t *txn) {
	if e.notifier == nil || t == nil {
		return
	}
	// Committed changes are announced even when the request was cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, event := range t.events {
		n := Notification{
			GameToken: t.game.Token,
			Type:      event.eventType,
			Phase:     event.phase,
			Ended:     event.ended,
			PlayerID:  event.playerID,
			FactID:    event.factID,
			At:        t.at,
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			log.WithFields(log.Fields{
				"game":  t.game.Token,
				"event": event.eventType,
			}).WithError(err).Warn("notify failed")
		}
	}
}
