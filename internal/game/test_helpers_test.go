package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzaLess/guesswho/internal/config"
	"github.com/AzaLess/guesswho/internal/db"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu      sync.Mutex
	items   []Notification
	ctxErrs []error
	// onNotify runs before each delivery is recorded.
	onNotify func()
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	if r.onNotify != nil {
		r.onNotify()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Type)
	}
	return out
}

func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *gorm.DB) {
	t.Helper()
	return newTestEngineWithConfig(t, config.Default(), opts...)
}

func newTestEngineWithConfig(t *testing.T, cfg config.Config, opts ...Option) (*Engine, *gorm.DB) {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	base := []Option{
		WithClock(steppingClock()),
		WithPicker(func(n int) int { return 0 }),
	}
	return New(conn, cfg, append(base, opts...)...), conn
}

// table seats a host plus the named players in a fresh game.
type table struct {
	token   string
	host    *db.Player
	players map[string]*db.Player
}

func newTable(t *testing.T, e *Engine, names ...string) table {
	t.Helper()
	ctx := context.Background()
	game, host, err := e.CreateGame(ctx, "H")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	tbl := table{token: game.Token, host: host, players: map[string]*db.Player{"H": host}}
	for _, name := range names {
		player, err := e.JoinGame(ctx, game.Token, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		tbl.players[name] = player
	}
	return tbl
}

func (tbl table) id(name string) uint {
	return tbl.players[name].ID
}

func submitFact(t *testing.T, e *Engine, playerID uint, text string) *db.Fact {
	t.Helper()
	fact, err := e.SubmitFact(context.Background(), playerID, text)
	if err != nil {
		t.Fatalf("submit fact: %v", err)
	}
	return fact
}

func loadGame(t *testing.T, conn *gorm.DB, token string) db.Game {
	t.Helper()
	var game db.Game
	if err := conn.Where("token = ?", token).First(&game).Error; err != nil {
		t.Fatalf("load game: %v", err)
	}
	return game
}

func loadPlayer(t *testing.T, conn *gorm.DB, id uint) db.Player {
	t.Helper()
	var player db.Player
	if err := conn.First(&player, id).Error; err != nil {
		t.Fatalf("load player: %v", err)
	}
	return player
}

func scoreOf(t *testing.T, conn *gorm.DB, playerID uint) int {
	t.Helper()
	var score db.Score
	if err := conn.Where("player_id = ?", playerID).First(&score).Error; err != nil {
		t.Fatalf("load score: %v", err)
	}
	return score.Points
}

func logsOf(t *testing.T, conn *gorm.DB, playerID uint) []db.ScoreLog {
	t.Helper()
	var logs []db.ScoreLog
	if err := conn.Where("player_id = ?", playerID).Order("id asc").Find(&logs).Error; err != nil {
		t.Fatalf("load score logs: %v", err)
	}
	return logs
}

func expectReject(t *testing.T, err error, kind Kind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s rejection, got nil", kind, reason)
	}
	if !errors.Is(err, &Error{Kind: kind, Reason: reason}) {
		t.Fatalf("expected %s/%s rejection, got %v (%s/%s)", kind, reason, err, KindOf(err), ReasonOf(err))
	}
}

func assertPhaseInvariant(t *testing.T, game db.Game) {
	t.Helper()
	telling := game.Phase == PhaseStorytelling || game.Phase == PhaseRating
	if telling && game.StoryTellerID == nil {
		t.Fatalf("expected story teller in phase %s", game.Phase)
	}
	if !telling && game.StoryTellerID != nil {
		t.Fatalf("expected no story teller in phase %s, got %d", game.Phase, *game.StoryTellerID)
	}
	if game.Ended && game.StoryTellerID != nil {
		t.Fatal("expected ended game to have no story teller")
	}
}

func assertLedger(t *testing.T, e *Engine, token string) {
	t.Helper()
	if err := e.VerifyLedger(context.Background(), token); err != nil {
		t.Fatalf("ledger mismatch: %v", err)
	}
}
