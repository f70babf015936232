package game

import (
	"context"
	"fmt"

	"github.com/AzaLess/guesswho/internal/db"

	log "github.com/sirupsen/logrus"
)

// SubmitFact adds a fact to the game's pool. Facts are accepted in any phase,
// and the text is stored as given.
func (e *Engine) SubmitFact(ctx context.Context, playerID uint, text string) (*db.Fact, error) {
	gameID, err := e.gameIDByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	var fact db.Fact
	_, err = e.updateGame(ctx, gameID, func(t *txn) error {
		author, err := t.player(playerID)
		if err != nil {
			return err
		}
		fact = db.Fact{
			GameID:    t.game.ID,
			AuthorID:  author.ID,
			Text:      text,
			CreatedAt: t.at,
			UpdatedAt: t.at,
		}
		if err := t.tx.Create(&fact).Error; err != nil {
			return fmt.Errorf("create fact: %w", err)
		}
		at := t.at
		t.game.LastFactAdded = &at
		if err := t.saveGame(); err != nil {
			return err
		}
		t.record(EventFactSubmitted, uintPtr(author.ID), uintPtr(fact.ID), EventPayload{})
		t.logger().WithFields(log.Fields{
			"player_id": author.ID,
			"fact_id":   fact.ID,
		}).Info("fact submitted")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &fact, nil
}

// SetCurrentFact lets the host choose which unguessed fact is live, or clear
// the selection. Only allowed while guessing.
func (e *Engine) SetCurrentFact(ctx context.Context, token string, playerID uint, choice FactChoice) (*db.Game, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.updateGame(ctx, gameID, func(t *txn) error {
		if _, err := t.host(playerID); err != nil {
			return err
		}
		if t.game.Ended {
			return rejectConflict(ReasonGameEnded, "game has ended")
		}
		if t.game.Phase != PhaseGuessing {
			return rejectConflict(ReasonWrongPhase, "current fact can only change while guessing")
		}
		factID, ok := choice.Get()
		if !ok {
			t.game.CurrentFactID = nil
		} else {
			fact, err := t.fact(factID)
			if err != nil {
				if KindOf(err) == KindNotFound {
					return rejectNotFound(ReasonNotFound, "fact not found")
				}
				return err
			}
			if fact.Guessed {
				return rejectConflict(ReasonFactGuessed, "fact has already been guessed")
			}
			t.game.CurrentFactID = uintPtr(fact.ID)
		}
		if err := t.saveGame(); err != nil {
			return err
		}
		t.record(EventCurrentFact, uintPtr(playerID), t.game.CurrentFactID, EventPayload{})
		return nil
	})
}

// host loads playerID and requires them to be the game's host.
func (t *txn) host(playerID uint) (*db.Player, error) {
	player, err := t.player(playerID)
	if err != nil {
		return nil, err
	}
	if !player.IsHost {
		return nil, rejectForbidden(ReasonForbidden, "only the host can do that")
	}
	return player, nil
}

// pickUnguessed returns a uniformly random unguessed fact id, or nil.
func (e *Engine) pickUnguessed(t *txn) (*uint, error) {
	var candidates []uint
	err := t.tx.Model(&db.Fact{}).
		Where("game_id = ? AND guessed = ?", t.game.ID, false).
		Order("id asc").
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load unguessed facts: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return uintPtr(candidates[e.pick(len(candidates))]), nil
}
