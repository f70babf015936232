package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AzaLess/guesswho/internal/db"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGame opens a new game under a fresh token and seats its host.
func (e *Engine) CreateGame(ctx context.Context, hostName string) (*db.Game, *db.Player, error) {
	name := normalizeName(hostName)
	if name == "" {
		name = normalizeName(e.cfg.DefaultHostName)
	}
	if name == "" {
		return nil, nil, rejectInvalid(ReasonInvalidName, "host name is required")
	}
	attempts := e.cfg.TokenMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		token := e.newToken()
		var taken int64
		if err := e.db.WithContext(ctx).Model(&db.Game{}).Where("token = ?", token).Count(&taken).Error; err != nil {
			return nil, nil, fmt.Errorf("check token: %w", err)
		}
		if taken > 0 {
			continue
		}
		game, host, err := e.createGame(ctx, token, name)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, nil, err
		}
		return game, host, nil
	}
	log.WithField("attempts", attempts).Error("no free game token")
	return nil, nil, &Error{
		Kind:    KindExhausted,
		Reason:  ReasonTokenExhausted,
		Message: fmt.Sprintf("no free game token after %d attempts", attempts),
	}
}

func (e *Engine) createGame(ctx context.Context, token, hostName string) (*db.Game, *db.Player, error) {
	at := e.now()
	game := db.Game{Token: token, Phase: PhaseGuessing, CreatedAt: at, UpdatedAt: at}
	var host db.Player
	var created *txn
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		host = db.Player{
			GameID:    game.ID,
			Name:      hostName,
			IsHost:    true,
			JoinedAt:  at,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := tx.Create(&host).Error; err != nil {
			return fmt.Errorf("create host: %w", err)
		}
		if err := newScore(tx, game.ID, host.ID, at); err != nil {
			return err
		}
		t := &txn{tx: tx, game: &game, at: at}
		t.record(EventGameCreated, nil, nil, EventPayload{Token: token})
		t.record(EventPlayerJoined, uintPtr(host.ID), nil, EventPayload{PlayerName: host.Name})
		if err := t.flushEvents(); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.publish(ctx, created)
	log.WithFields(log.Fields{"game": token, "player_id": host.ID}).Info("game created")
	return &game, &host, nil
}

// JoinGame seats a new player. Names are not required to be unique.
func (e *Engine) JoinGame(ctx context.Context, token, name string) (*db.Player, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, rejectInvalid(ReasonInvalidName, "name is required")
	}
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	var player db.Player
	_, err = e.updateGame(ctx, gameID, func(t *txn) error {
		if t.game.Ended {
			return rejectConflict(ReasonGameEnded, "game has ended")
		}
		player = db.Player{
			GameID:    t.game.ID,
			Name:      name,
			JoinedAt:  t.at,
			CreatedAt: t.at,
			UpdatedAt: t.at,
		}
		if err := t.tx.Create(&player).Error; err != nil {
			return fmt.Errorf("create player: %w", err)
		}
		if err := newScore(t.tx, t.game.ID, player.ID, t.at); err != nil {
			return err
		}
		t.record(EventPlayerJoined, uintPtr(player.ID), nil, EventPayload{PlayerName: player.Name})
		t.logger().WithField("player_id", player.ID).Info("player joined")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// StartGame marks the game started and, when no fact is live yet, picks one.
// Starting twice is a no-op.
func (e *Engine) StartGame(ctx context.Context, token string, playerID uint) (*db.Game, error) {
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
		if t.game.Started {
			return nil
		}
		t.game.Started = true
		if t.game.CurrentFactID == nil && t.game.Phase == PhaseGuessing {
			next, err := e.pickUnguessed(t)
			if err != nil {
				return err
			}
			t.game.CurrentFactID = next
		}
		if err := t.saveGame(); err != nil {
			return err
		}
		t.record(EventGameStarted, uintPtr(playerID), t.game.CurrentFactID, EventPayload{Phase: t.game.Phase})
		return nil
	})
}

// EndGame closes the game. Ending an ended game is a no-op.
func (e *Engine) EndGame(ctx context.Context, token string, playerID uint) (*db.Game, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.updateGame(ctx, gameID, func(t *txn) error {
		if _, err := t.host(playerID); err != nil {
			return err
		}
		if t.game.Ended {
			return nil
		}
		from := t.game.Phase
		t.game.Ended = true
		t.game.Phase = PhaseGuessing
		t.game.CurrentFactID = nil
		t.game.StoryTellerID = nil
		if err := t.resetRoundFlags(); err != nil {
			return err
		}
		if err := t.saveGame(); err != nil {
			return err
		}
		t.record(EventGameEnded, uintPtr(playerID), nil, EventPayload{From: from, Ended: true})
		t.logger().Info("game ended by host")
		return nil
	})
}

// SubmitLiveGuess records playerID's guess that guessedPlayerID wrote factID.
// A correct guess scores the round and moves the game to storytelling; the
// fact's guessed flag is re-read under the game lock so only the first
// correct guess wins.
func (e *Engine) SubmitLiveGuess(ctx context.Context, playerID, factID, guessedPlayerID uint) (*db.LiveGuess, error) {
	gameID, err := e.gameIDByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	var guess db.LiveGuess
	_, err = e.updateGame(ctx, gameID, func(t *txn) error {
		guesser, err := t.player(playerID)
		if err != nil {
			return err
		}
		if t.game.Ended {
			return rejectConflict(ReasonGameEnded, "game has ended")
		}
		fact, err := t.fact(factID)
		if err != nil {
			return err
		}
		if fact.Guessed {
			return rejectConflict(ReasonFactGuessed, "fact has already been guessed")
		}
		if t.game.Phase != PhaseGuessing {
			return rejectConflict(ReasonWrongPhase, "guesses are only accepted while guessing")
		}
		if t.game.CurrentFactID != nil && *t.game.CurrentFactID != fact.ID {
			return rejectConflict(ReasonNotCurrentFact, "fact is not the current fact")
		}
		target, err := t.player(guessedPlayerID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return rejectInvalid(ReasonInvalidTarget, "guessed player is not in this game")
			}
			return err
		}
		if guesser.ID == fact.AuthorID {
			return rejectConflict(ReasonAuthorSelfGuess, "authors cannot guess their own fact")
		}
		var existing int64
		if err := t.tx.Model(&db.LiveGuess{}).
			Where("fact_id = ? AND guesser_id = ?", fact.ID, guesser.ID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check duplicate guess: %w", err)
		}
		if existing > 0 {
			return rejectConflict(ReasonDuplicateGuess, "player already guessed this fact")
		}

		guess = db.LiveGuess{
			FactID:          fact.ID,
			GuesserID:       guesser.ID,
			GuessedPlayerID: uintPtr(target.ID),
			IsCorrect:       target.ID == fact.AuthorID,
			CreatedAt:       t.at,
		}
		if err := t.tx.Create(&guess).Error; err != nil {
			if isUniqueViolation(err) {
				return &Error{Kind: KindConflict, Reason: ReasonDuplicateGuess, Message: "player already guessed this fact", Cause: err}
			}
			return fmt.Errorf("create live guess: %w", err)
		}
		t.record(EventLiveGuess, uintPtr(guesser.ID), uintPtr(fact.ID), EventPayload{
			GuessedPlayerID: target.ID,
			Correct:         guess.IsCorrect,
		})
		t.logger().WithFields(log.Fields{
			"player_id": guesser.ID,
			"fact_id":   fact.ID,
			"correct":   guess.IsCorrect,
		}).Info("live guess")
		if !guess.IsCorrect {
			return nil
		}
		return e.scoreCorrectGuess(t, fact, guesser)
	})
	if err != nil {
		return nil, err
	}
	return &guess, nil
}

func (e *Engine) scoreCorrectGuess(t *txn, fact *db.Fact, guesser *db.Player) error {
	var wrong int64
	if err := t.tx.Model(&db.LiveGuess{}).
		Where("fact_id = ? AND is_correct = ?", fact.ID, false).
		Count(&wrong).Error; err != nil {
		return fmt.Errorf("count wrong guesses: %w", err)
	}
	text := preview(fact.Text, e.cfg.FactPreviewLength)
	if err := t.award(guesser.ID, e.cfg.CorrectGuessPoints, CategoryCorrectGuess,
		fmt.Sprintf("Guessed who wrote %q", text), uintPtr(fact.ID)); err != nil {
		return err
	}
	if wrong > 0 {
		if err := t.award(fact.AuthorID, int(wrong), CategoryWrongGuesses,
			fmt.Sprintf("%d wrong guesses on %q", wrong, text), uintPtr(fact.ID)); err != nil {
			return err
		}
	}
	t.record(EventFactGuessed, uintPtr(guesser.ID), uintPtr(fact.ID), EventPayload{
		Points: e.cfg.CorrectGuessPoints,
		Count:  int(wrong),
	})
	return e.advancePhase(t, fact)
}

// FinishStory ends the storytelling phase. Only the story teller may call it;
// story, when set, is stored on the current fact.
func (e *Engine) FinishStory(ctx context.Context, playerID uint, token string, story *string) (*db.Game, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.updateGame(ctx, gameID, func(t *txn) error {
		player, err := t.player(playerID)
		if err != nil {
			return err
		}
		if t.game.Ended {
			return rejectConflict(ReasonGameEnded, "game has ended")
		}
		if t.game.StoryTellerID == nil || *t.game.StoryTellerID != player.ID {
			return rejectForbidden(ReasonNotStoryTeller, "only the story teller can finish the story")
		}
		if t.game.Phase != PhaseStorytelling || t.game.CurrentFactID == nil {
			return rejectConflict(ReasonWrongPhase, "story is not being told")
		}
		fact, err := t.fact(*t.game.CurrentFactID)
		if err != nil {
			return err
		}
		updates := map[string]any{"story_revealed": true, "updated_at": t.at}
		if story != nil {
			if text := strings.TrimSpace(*story); text != "" {
				updates["story"] = text
			}
		}
		if err := t.tx.Model(&db.Fact{}).Where("id = ?", fact.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("reveal story: %w", err)
		}
		t.record(EventStoryFinished, uintPtr(player.ID), uintPtr(fact.ID), EventPayload{})
		if err := e.advancePhase(t, fact); err != nil {
			return err
		}
		// A lone player has nobody to rate; the threshold is already met.
		return e.maybeCompleteRating(t)
	})
}

// SubmitStoryRating upserts playerID's rating of the current story and closes
// the rating phase once everyone but the story teller has rated.
func (e *Engine) SubmitStoryRating(ctx context.Context, playerID, factID uint, rating int) (*db.StoryRating, error) {
	if rating < minRating || rating > maxRating {
		return nil, rejectInvalid(ReasonInvalidRating, fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}
	gameID, err := e.gameIDByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	var stored db.StoryRating
	_, err = e.updateGame(ctx, gameID, func(t *txn) error {
		rater, err := t.player(playerID)
		if err != nil {
			return err
		}
		fact, err := t.fact(factID)
		if err != nil {
			return err
		}
		if fact.AuthorID == rater.ID {
			return rejectConflict(ReasonAuthorSelfRate, "authors cannot rate their own story")
		}
		if t.game.Ended {
			return rejectConflict(ReasonGameEnded, "game has ended")
		}
		if t.game.Phase != PhaseRating || t.game.CurrentFactID == nil || *t.game.CurrentFactID != fact.ID {
			return rejectConflict(ReasonWrongPhase, "this story is not being rated")
		}
		row := db.StoryRating{
			FactID:    fact.ID,
			RaterID:   rater.ID,
			Rating:    rating,
			CreatedAt: t.at,
			UpdatedAt: t.at,
		}
		err = t.tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fact_id"}, {Name: "rater_id"}},
			DoUpdates: clause.Assignments(map[string]any{"rating": rating, "updated_at": t.at}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
		if err := t.tx.Where("fact_id = ? AND rater_id = ?", fact.ID, rater.ID).First(&stored).Error; err != nil {
			return fmt.Errorf("reload rating: %w", err)
		}
		err = t.tx.Model(&db.Player{}).
			Where("id = ?", rater.ID).
			Updates(map[string]any{"has_rated_story": true, "updated_at": t.at}).Error
		if err != nil {
			return fmt.Errorf("mark rated: %w", err)
		}
		t.record(EventStoryRated, uintPtr(rater.ID), uintPtr(fact.ID), EventPayload{Rating: rating})
		return e.maybeCompleteRating(t)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// RemovePlayer deletes targetID with their facts, guesses, ratings, score and
// ledger rows. Ledger rows of other players keep their points but lose the
// reference to a removed fact. Other players' guesses that named the target
// stay on record with the target cleared. A round that depends on the removed player is
// abandoned without scoring.
func (e *Engine) RemovePlayer(ctx context.Context, token string, actorID, targetID uint) (*db.Game, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.updateGame(ctx, gameID, func(t *txn) error {
		if _, err := t.host(actorID); err != nil {
			return err
		}
		target, err := t.player(targetID)
		if err != nil {
			return err
		}
		if target.IsHost {
			return rejectInvalid(ReasonInvalidTarget, "the host cannot be removed")
		}

		var factIDs []uint
		if err := t.tx.Model(&db.Fact{}).Where("author_id = ?", target.ID).Pluck("id", &factIDs).Error; err != nil {
			return fmt.Errorf("load facts: %w", err)
		}
		wasTeller := t.game.StoryTellerID != nil && *t.game.StoryTellerID == target.ID
		ownsCurrent := false
		if t.game.CurrentFactID != nil {
			for _, id := range factIDs {
				if id == *t.game.CurrentFactID {
					ownsCurrent = true
					break
				}
			}
		}
		if wasTeller || ownsCurrent {
			t.game.CurrentFactID = nil
			t.game.StoryTellerID = nil
		}
		if err := deletePlayerRows(t.tx, target.ID, factIDs); err != nil {
			return err
		}

		if wasTeller || ownsCurrent {
			if err := e.abandonRound(t, "player_removed"); err != nil {
				return err
			}
		} else {
			if err := t.saveGame(); err != nil {
				return err
			}
			if err := e.maybeCompleteRating(t); err != nil {
				return err
			}
		}
		t.record(EventPlayerRemoved, uintPtr(target.ID), nil, EventPayload{
			PlayerName: target.Name,
			Count:      len(factIDs),
		})
		t.logger().WithFields(log.Fields{
			"player_id": target.ID,
			"facts":     len(factIDs),
		}).Info("player removed")
		return nil
	})
}

func deletePlayerRows(tx *gorm.DB, playerID uint, factIDs []uint) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"live guesses", func() error {
			query := tx.Where("guesser_id = ?", playerID)
			if len(factIDs) > 0 {
				query = tx.Where("guesser_id = ? OR fact_id IN ?", playerID, factIDs)
			}
			return query.Delete(&db.LiveGuess{}).Error
		}},
		{"guess targets", func() error {
			return tx.Model(&db.LiveGuess{}).Where("guessed_player_id = ?", playerID).Update("guessed_player_id", nil).Error
		}},
		{"story ratings", func() error {
			query := tx.Where("rater_id = ?", playerID)
			if len(factIDs) > 0 {
				query = tx.Where("rater_id = ? OR fact_id IN ?", playerID, factIDs)
			}
			return query.Delete(&db.StoryRating{}).Error
		}},
		{"score logs", func() error {
			return tx.Where("player_id = ?", playerID).Delete(&db.ScoreLog{}).Error
		}},
		{"fact references", func() error {
			if len(factIDs) == 0 {
				return nil
			}
			return tx.Model(&db.ScoreLog{}).Where("fact_id IN ?", factIDs).Update("fact_id", nil).Error
		}},
		{"score", func() error {
			return tx.Where("player_id = ?", playerID).Delete(&db.Score{}).Error
		}},
		{"facts", func() error {
			if len(factIDs) == 0 {
				return nil
			}
			return tx.Where("id IN ?", factIDs).Delete(&db.Fact{}).Error
		}},
		{"player", func() error {
			return tx.Delete(&db.Player{}, playerID).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("remove %s: %w", step.name, err)
		}
	}
	return nil
}

// CheckGame reports whether a game with token exists.
func (e *Engine) CheckGame(ctx context.Context, token string) error {
	_, err := e.gameIDByToken(ctx, token)
	return err
}

// CheckPlayer reports whether playerID belongs to the game behind token.
func (e *Engine) CheckPlayer(ctx context.Context, token string, playerID uint) error {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return err
	}
	var player db.Player
	err = e.db.WithContext(ctx).Select("id").Where("id = ? AND game_id = ?", playerID, gameID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rejectNotFound(ReasonInvalidPlayer, "player not found")
		}
		return fmt.Errorf("find player: %w", err)
	}
	return nil
}

func normalizeName(name string) string {
	return clip(strings.Join(strings.Fields(name), " "), 64)
}
