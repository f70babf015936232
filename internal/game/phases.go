package game

import (
	"errors"
	"fmt"

	"github.com/AzaLess/guesswho/internal/db"

	log "github.com/sirupsen/logrus"
)

type phaseTransition struct {
	next  string
	enter func(e *Engine, t *txn, fact *db.Fact) error
}

var phaseTransitions = map[string]phaseTransition{
	PhaseGuessing: {
		next: PhaseStorytelling,
		enter: func(e *Engine, t *txn, fact *db.Fact) error {
			err := t.tx.Model(&db.Fact{}).
				Where("id = ?", fact.ID).
				Updates(map[string]any{"guessed": true, "updated_at": t.at}).Error
			if err != nil {
				return fmt.Errorf("mark fact guessed: %w", err)
			}
			fact.Guessed = true
			t.game.CurrentFactID = uintPtr(fact.ID)
			t.game.StoryTellerID = uintPtr(fact.AuthorID)
			return t.resetRoundFlags()
		},
	},
	PhaseStorytelling: {
		next: PhaseRating,
		enter: func(e *Engine, t *txn, fact *db.Fact) error {
			if t.game.StoryTellerID == nil {
				return errors.New("storytelling without a story teller")
			}
			if err := t.resetRoundFlags(); err != nil {
				return err
			}
			err := t.tx.Model(&db.Player{}).
				Where("id = ?", *t.game.StoryTellerID).
				Updates(map[string]any{"has_finished_story": true, "updated_at": t.at}).Error
			if err != nil {
				return fmt.Errorf("mark story finished: %w", err)
			}
			return nil
		},
	},
	PhaseRating: {
		next: PhaseGuessing,
		enter: func(e *Engine, t *txn, fact *db.Fact) error {
			if err := e.scoreStory(t, fact); err != nil {
				return err
			}
			return e.closeRound(t)
		},
	},
}

// advancePhase applies the transition out of the game's current phase. fact
// is the fact the transition concerns: the one just guessed, or the current
// fact when leaving storytelling or rating.
func (e *Engine) advancePhase(t *txn, fact *db.Fact) error {
	from := t.game.Phase
	transition, ok := phaseTransitions[from]
	if !ok {
		return fmt.Errorf("unknown phase %q", from)
	}
	if err := transition.enter(e, t, fact); err != nil {
		return err
	}
	t.game.Phase = transition.next
	if err := t.saveGame(); err != nil {
		return err
	}
	t.record(EventPhaseChanged, nil, uintPtr(fact.ID), EventPayload{
		From:  from,
		Phase: t.game.Phase,
		Ended: t.game.Ended,
	})
	t.logger().WithFields(log.Fields{
		"from":    from,
		"fact_id": fact.ID,
		"ended":   t.game.Ended,
	}).Info("phase advanced")
	return nil
}

// scoreStory awards the author the banker's-rounded mean of the story ratings
// and stores the raw mean on the fact.
func (e *Engine) scoreStory(t *txn, fact *db.Fact) error {
	var ratings []int
	if err := t.tx.Model(&db.StoryRating{}).Where("fact_id = ?", fact.ID).Pluck("rating", &ratings).Error; err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if len(ratings) == 0 {
		return nil
	}
	avg, points := storyPoints(ratings)
	average := formatAverage(avg)
	description := fmt.Sprintf("Story for %q rated %s on average (%d ratings), %d points",
		preview(fact.Text, e.cfg.FactPreviewLength), average, len(ratings), points)
	if err := t.award(fact.AuthorID, points, CategoryStoryRating, description, uintPtr(fact.ID)); err != nil {
		return err
	}
	err := t.tx.Model(&db.Fact{}).
		Where("id = ?", fact.ID).
		Updates(map[string]any{
			"story_rating_average": avg,
			"story_rating_count":   len(ratings),
			"updated_at":           t.at,
		}).Error
	if err != nil {
		return fmt.Errorf("store rating average: %w", err)
	}
	t.record(EventRoundScored, uintPtr(fact.AuthorID), uintPtr(fact.ID), EventPayload{
		Average: average,
		Points:  points,
		Count:   len(ratings),
	})
	return nil
}

// closeRound returns the game to guessing with a freshly selected fact, or
// ends it when no unguessed fact remains. The caller sets the phase.
func (e *Engine) closeRound(t *txn) error {
	t.game.StoryTellerID = nil
	if err := t.resetRoundFlags(); err != nil {
		return err
	}
	return e.selectNextFact(t)
}

// selectNextFact picks an unguessed fact uniformly at random as the current
// fact. With none left the game ends.
func (e *Engine) selectNextFact(t *txn) error {
	next, err := e.pickUnguessed(t)
	if err != nil {
		return err
	}
	t.game.CurrentFactID = next
	if next == nil {
		t.game.Ended = true
	}
	return nil
}

// abandonRound drops the round in progress without scoring it and moves on
// to the next fact.
func (e *Engine) abandonRound(t *txn, reason string) error {
	from := t.game.Phase
	if err := e.closeRound(t); err != nil {
		return err
	}
	t.game.Phase = PhaseGuessing
	if err := t.saveGame(); err != nil {
		return err
	}
	t.record(EventRoundSkipped, nil, t.game.CurrentFactID, EventPayload{
		From:   from,
		Phase:  t.game.Phase,
		Reason: reason,
		Ended:  t.game.Ended,
	})
	return nil
}

// ratingComplete reports whether everyone except the story teller has rated.
func ratingComplete(players []db.Player) bool {
	rated := 0
	for _, p := range players {
		if p.HasRatedStory {
			rated++
		}
	}
	return rated >= len(players)-1
}

// maybeCompleteRating closes the rating phase once the threshold is reached.
func (e *Engine) maybeCompleteRating(t *txn) error {
	if t.game.Phase != PhaseRating || t.game.Ended || t.game.CurrentFactID == nil {
		return nil
	}
	players, err := t.players()
	if err != nil {
		return err
	}
	if !ratingComplete(players) {
		return nil
	}
	fact, err := t.fact(*t.game.CurrentFactID)
	if err != nil {
		return err
	}
	return e.advancePhase(t, fact)
}
