package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AzaLess/guesswho/internal/db"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gameLocks serialises writers per game inside one process. Postgres row
// locks cover writers in other processes.
type gameLocks struct {
	mu    sync.Mutex
	locks map[uint]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[uint]*gameLock)}
}

func (l *gameLocks) lock(id uint) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &gameLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// txn is the state handed to a mutation running inside updateGame. game is
// the locked row; changes to it are saved on commit.
type txn struct {
	tx     *gorm.DB
	game   *db.Game
	at     time.Time
	events []pendingEvent
}

// updateGame runs update as a single transaction holding the game's write
// lock. Either every change made by update commits, or none does.
func (e *Engine) updateGame(ctx context.Context, gameID uint, update func(t *txn) error) (*db.Game, error) {
	unlock := e.locks.lock(gameID)
	defer unlock()

	var committed *txn
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		t := &txn{tx: tx, game: game, at: e.now()}
		if err := update(t); err != nil {
			return err
		}
		if err := t.flushEvents(); err != nil {
			return err
		}
		committed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, committed)
	return committed.game, nil
}

func lockGame(tx *gorm.DB, gameID uint) (*db.Game, error) {
	query := tx
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var game db.Game
	if err := query.First(&game, gameID).Error; err != nil {
		if isNotFound(err) {
			return nil, rejectNotFound(ReasonNotFound, "game not found")
		}
		return nil, fmt.Errorf("lock game: %w", err)
	}
	return &game, nil
}

func (t *txn) saveGame() error {
	updates := map[string]any{
		"phase":           t.game.Phase,
		"started":         t.game.Started,
		"ended":           t.game.Ended,
		"current_fact_id": t.game.CurrentFactID,
		"story_teller_id": t.game.StoryTellerID,
		"last_fact_added": t.game.LastFactAdded,
		"updated_at":      t.at,
	}
	if err := t.tx.Model(&db.Game{}).Where("id = ?", t.game.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	t.game.UpdatedAt = t.at
	return nil
}

func (t *txn) players() ([]db.Player, error) {
	var players []db.Player
	if err := t.tx.Where("game_id = ?", t.game.ID).Order("id asc").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	return players, nil
}

func (t *txn) player(playerID uint) (*db.Player, error) {
	var player db.Player
	if err := t.tx.Where("id = ? AND game_id = ?", playerID, t.game.ID).First(&player).Error; err != nil {
		if isNotFound(err) {
			return nil, rejectNotFound(ReasonInvalidPlayer, "player not found")
		}
		return nil, fmt.Errorf("load player: %w", err)
	}
	return &player, nil
}

func (t *txn) fact(factID uint) (*db.Fact, error) {
	var fact db.Fact
	if err := t.tx.Where("id = ? AND game_id = ?", factID, t.game.ID).First(&fact).Error; err != nil {
		if isNotFound(err) {
			return nil, rejectNotFound(ReasonInvalidFact, "fact not found")
		}
		return nil, fmt.Errorf("load fact: %w", err)
	}
	return &fact, nil
}

// resetRoundFlags clears both per-round flags for every player in the game.
func (t *txn) resetRoundFlags() error {
	err := t.tx.Model(&db.Player{}).
		Where("game_id = ?", t.game.ID).
		Updates(map[string]any{
			"has_finished_story": false,
			"has_rated_story":    false,
			"updated_at":         t.at,
		}).Error
	if err != nil {
		return fmt.Errorf("reset round flags: %w", err)
	}
	return nil
}

func (t *txn) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"game":  t.game.Token,
		"phase": t.game.Phase,
	})
}

func (e *Engine) gameIDByToken(ctx context.Context, token string) (uint, error) {
	var game db.Game
	err := e.db.WithContext(ctx).Select("id").Where("token = ?", token).First(&game).Error
	if err != nil {
		if isNotFound(err) {
			return 0, rejectNotFound(ReasonNotFound, "game not found")
		}
		return 0, fmt.Errorf("find game: %w", err)
	}
	return game.ID, nil
}

func (e *Engine) gameIDByPlayer(ctx context.Context, playerID uint) (uint, error) {
	var player db.Player
	err := e.db.WithContext(ctx).Select("id", "game_id").First(&player, playerID).Error
	if err != nil {
		if isNotFound(err) {
			return 0, rejectNotFound(ReasonInvalidPlayer, "player not found")
		}
		return 0, fmt.Errorf("find player: %w", err)
	}
	return player.GameID, nil
}
