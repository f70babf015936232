package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AzaLess/guesswho/internal/db"

	"gorm.io/datatypes"
)

const (
	EventGameCreated   = "game_created"
	EventPlayerJoined  = "player_joined"
	EventPlayerRemoved = "player_removed"
	EventGameStarted   = "game_started"
	EventGameEnded     = "game_ended"
	EventFactSubmitted = "fact_submitted"
	EventCurrentFact   = "current_fact_set"
	EventLiveGuess     = "live_guess_submitted"
	EventFactGuessed   = "fact_guessed"
	EventStoryFinished = "story_finished"
	EventStoryRated    = "story_rated"
	EventRoundScored   = "round_scored"
	EventRoundSkipped  = "round_skipped"
	EventPhaseChanged  = "phase_changed"
)

type EventPayload struct {
	Token           string `json:"token,omitempty"`
	PlayerName      string `json:"player,omitempty"`
	Phase           string `json:"phase,omitempty"`
	From            string `json:"from,omitempty"`
	GuessedPlayerID uint   `json:"guessed_player_id,omitempty"`
	Correct         bool   `json:"correct,omitempty"`
	Rating          int    `json:"rating,omitempty"`
	Average         string `json:"average,omitempty"`
	Points          int    `json:"points,omitempty"`
	Count           int    `json:"count,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Ended           bool   `json:"ended,omitempty"`
}

type pendingEvent struct {
	eventType string
	playerID  *uint
	factID    *uint
	phase     string
	ended     bool
	payload   EventPayload
}

func (t *txn) record(eventType string, playerID, factID *uint, payload EventPayload) {
	t.events = append(t.events, pendingEvent{
		eventType: eventType,
		playerID:  playerID,
		factID:    factID,
		phase:     t.game.Phase,
		ended:     t.game.Ended,
		payload:   payload,
	})
}

func (t *txn) flushEvents() error {
	for _, event := range t.events {
		data, err := json.Marshal(event.payload)
		if err != nil {
			return err
		}
		row := db.Event{
			GameID:    t.game.ID,
			PlayerID:  event.playerID,
			FactID:    event.factID,
			Type:      event.eventType,
			Payload:   datatypes.JSON(data),
			CreatedAt: t.at,
		}
		if err := t.tx.Create(&row).Error; err != nil {
			return fmt.Errorf("persist event %s: %w", event.eventType, err)
		}
	}
	return nil
}

// Events lists the audit trail of a game oldest first, one page at a time.
func (e *Engine) Events(ctx context.Context, token string, page, perPage int) ([]EventView, int64, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	query := e.db.WithContext(ctx).Model(&db.Event{}).Where("game_id = ?", gameID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	var rows []db.Event
	err = e.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at asc").
		Order("id asc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	views := make([]EventView, 0, len(rows))
	for _, row := range rows {
		view := EventView{
			ID:        row.ID,
			Type:      row.Type,
			PlayerID:  row.PlayerID,
			FactID:    row.FactID,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &view.Payload); err != nil {
				return nil, 0, fmt.Errorf("decode event %d: %w", row.ID, err)
			}
		}
		views = append(views, view)
	}
	return views, total, nil
}

func uintPtr(v uint) *uint {
	return &v
}
