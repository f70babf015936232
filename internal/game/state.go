package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/AzaLess/guesswho/internal/db"
)

// GetState returns the polling snapshot of a game. Facts come in an order
// seeded by the game id, so every client sees the same shuffle, and authors
// stay hidden until their fact is guessed.
func (e *Engine) GetState(ctx context.Context, token string) (*State, error) {
	conn := e.db.WithContext(ctx)
	var game db.Game
	if err := conn.Where("token = ?", token).First(&game).Error; err != nil {
		if isNotFound(err) {
			return nil, rejectNotFound(ReasonNotFound, "game not found")
		}
		return nil, fmt.Errorf("load game: %w", err)
	}

	var players []db.Player
	if err := conn.Where("game_id = ?", game.ID).Order("id asc").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	names := make(map[uint]string, len(players))
	state := &State{
		Game:         GameViewOf(&game),
		Players:      make([]PlayerView, 0, len(players)),
		LiveGuesses:  []LiveGuessView{},
		StoryRatings: []StoryRatingView{},
	}
	for _, p := range players {
		names[p.ID] = p.Name
		state.Players = append(state.Players, PlayerView{
			ID:               p.ID,
			Name:             p.Name,
			IsHost:           p.IsHost,
			HasFinishedStory: p.HasFinishedStory,
			HasRatedStory:    p.HasRatedStory,
			JoinedAt:         p.JoinedAt,
		})
	}

	var facts []db.Fact
	if err := conn.Where("game_id = ?", game.ID).Order("id asc").Find(&facts).Error; err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	shuffleFacts(facts, game.ID)
	state.Facts = make([]FactView, 0, len(facts))
	for i := range facts {
		view := factView(&facts[i], names)
		state.Facts = append(state.Facts, view)
		if game.CurrentFactID != nil && facts[i].ID == *game.CurrentFactID {
			current := view
			state.CurrentFact = &current
		}
	}

	if game.CurrentFactID != nil {
		var guesses []db.LiveGuess
		if err := conn.Where("fact_id = ?", *game.CurrentFactID).Order("created_at asc").Order("id asc").Find(&guesses).Error; err != nil {
			return nil, fmt.Errorf("load live guesses: %w", err)
		}
		for _, g := range guesses {
			state.LiveGuesses = append(state.LiveGuesses, LiveGuessView{
				ID:              g.ID,
				FactID:          g.FactID,
				GuesserID:       g.GuesserID,
				GuessedPlayerID: g.GuessedPlayerID,
				IsCorrect:       g.IsCorrect,
				CreatedAt:       g.CreatedAt,
			})
		}
		var ratings []db.StoryRating
		if err := conn.Where("fact_id = ?", *game.CurrentFactID).Order("id asc").Find(&ratings).Error; err != nil {
			return nil, fmt.Errorf("load story ratings: %w", err)
		}
		for _, r := range ratings {
			state.StoryRatings = append(state.StoryRatings, StoryRatingView{
				ID:        r.ID,
				FactID:    r.FactID,
				RaterID:   r.RaterID,
				Rating:    r.Rating,
				UpdatedAt: r.UpdatedAt,
			})
		}
	}

	scores, err := e.scores(ctx, game.ID, names)
	if err != nil {
		return nil, err
	}
	state.Scores = scores

	limit := e.cfg.ScoreLogLimit
	if limit <= 0 {
		limit = 20
	}
	var logs []db.ScoreLog
	err = conn.Where("game_id = ?", game.ID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("load score logs: %w", err)
	}
	state.ScoreLogs = make([]ScoreLogView, 0, len(logs))
	for _, l := range logs {
		state.ScoreLogs = append(state.ScoreLogs, ScoreLogView{
			ID:          l.ID,
			PlayerID:    l.PlayerID,
			Points:      l.Points,
			Category:    l.Category,
			Description: l.Description,
			FactID:      l.FactID,
			CreatedAt:   l.CreatedAt,
		})
	}
	return state, nil
}

// Scoreboard lists every player's total, highest first.
func (e *Engine) Scoreboard(ctx context.Context, token string) ([]ScoreEntry, error) {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	var players []db.Player
	if err := e.db.WithContext(ctx).Select("id", "name").Where("game_id = ?", gameID).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	names := make(map[uint]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}
	return e.scores(ctx, gameID, names)
}

func (e *Engine) scores(ctx context.Context, gameID uint, names map[uint]string) ([]ScoreEntry, error) {
	var rows []db.Score
	if err := e.db.WithContext(ctx).Where("game_id = ?", gameID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	entries := make([]ScoreEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ScoreEntry{
			PlayerID:   row.PlayerID,
			PlayerName: names[row.PlayerID],
			Points:     row.Points,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries, nil
}

func shuffleFacts(facts []db.Fact, seed uint) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(len(facts), func(i, j int) {
		facts[i], facts[j] = facts[j], facts[i]
	})
}

// GameViewOf converts a stored game for API responses.
func GameViewOf(g *db.Game) GameView {
	return GameView{
		ID:            g.ID,
		Token:         g.Token,
		Phase:         g.Phase,
		Started:       g.Started,
		Ended:         g.Ended,
		CurrentFactID: g.CurrentFactID,
		StoryTellerID: g.StoryTellerID,
		LastFactAdded: g.LastFactAdded,
		CreatedAt:     g.CreatedAt,
	}
}

func factView(f *db.Fact, names map[uint]string) FactView {
	view := FactView{
		ID:               f.ID,
		Text:             f.Text,
		Guessed:          f.Guessed,
		StoryRevealed:    f.StoryRevealed,
		StoryRatingCount: f.StoryRatingCount,
	}
	if f.Guessed {
		view.AuthorID = uintPtr(f.AuthorID)
		view.AuthorName = names[f.AuthorID]
	}
	if f.StoryRevealed {
		view.Story = f.Story
	}
	if f.StoryRatingAverage.Valid {
		avg := formatAverage(f.StoryRatingAverage.Decimal)
		view.StoryRatingAverage = &avg
	}
	return view
}

// PlayerViewOf converts a stored player for API responses.
func PlayerViewOf(p *db.Player) PlayerView {
	return PlayerView{
		ID:               p.ID,
		Name:             p.Name,
		IsHost:           p.IsHost,
		HasFinishedStory: p.HasFinishedStory,
		HasRatedStory:    p.HasRatedStory,
		JoinedAt:         p.JoinedAt,
	}
}
