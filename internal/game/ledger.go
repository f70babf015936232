package game

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AzaLess/guesswho/internal/db"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxDescriptionLength = 280

// Award appends one ScoreLog row and adds points to the player's running
// Score for the game in the same transaction. Ledger rows are never edited,
// so the sum of a player's ScoreLog points always equals Score.Points.
func Award(tx *gorm.DB, gameID, playerID uint, points int, category, description string, factID *uint, at time.Time) error {
	entry := db.ScoreLog{
		PlayerID:    playerID,
		GameID:      gameID,
		Points:      points,
		Category:    category,
		Description: clip(description, maxDescriptionLength),
		FactID:      factID,
		CreatedAt:   at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append score log: %w", err)
	}
	result := tx.Model(&db.Score{}).
		Where("player_id = ? AND game_id = ?", playerID, gameID).
		Updates(map[string]any{
			"points":     gorm.Expr("points + ?", points),
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("update score: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	score := db.Score{PlayerID: playerID, GameID: gameID, Points: points, CreatedAt: at, UpdatedAt: at}
	if err := tx.Create(&score).Error; err != nil {
		return fmt.Errorf("create score: %w", err)
	}
	return nil
}

func (t *txn) award(playerID uint, points int, category, description string, factID *uint) error {
	if err := Award(t.tx, t.game.ID, playerID, points, category, description, factID, t.at); err != nil {
		return err
	}
	t.logger().WithFields(log.Fields{
		"player_id": playerID,
		"points":    points,
		"category":  category,
	}).Info("points awarded")
	return nil
}

func newScore(tx *gorm.DB, gameID, playerID uint, at time.Time) error {
	score := db.Score{PlayerID: playerID, GameID: gameID, CreatedAt: at, UpdatedAt: at}
	if err := tx.Create(&score).Error; err != nil {
		return fmt.Errorf("create score: %w", err)
	}
	return nil
}

// storyPoints returns the mean of ratings and the mean rounded half to even.
func storyPoints(ratings []int) (decimal.Decimal, int) {
	if len(ratings) == 0 {
		return decimal.Zero, 0
	}
	values := make([]decimal.Decimal, len(ratings))
	for i, r := range ratings {
		values[i] = decimal.NewFromInt(int64(r))
	}
	avg := decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(ratings))))
	return avg, int(avg.RoundBank(0).IntPart())
}

// formatAverage renders an average with at most two decimals: 2.5, 2.33, 3.
func formatAverage(avg decimal.Decimal) string {
	return avg.Round(2).String()
}

// LedgerMismatch reports a player whose Score disagrees with their ScoreLog.
type LedgerMismatch struct {
	PlayerID uint
	Score    int
	LogSum   int
}

func (m LedgerMismatch) Error() string {
	return fmt.Sprintf("player %d: score %d, ledger sum %d", m.PlayerID, m.Score, m.LogSum)
}

// VerifyLedger re-derives every player's total from the ScoreLog and returns
// a LedgerMismatch for the first player whose Score disagrees.
func (e *Engine) VerifyLedger(ctx context.Context, token string) error {
	gameID, err := e.gameIDByToken(ctx, token)
	if err != nil {
		return err
	}
	type sumRow struct {
		PlayerID uint
		Total    int
	}
	var sums []sumRow
	err = e.db.WithContext(ctx).Model(&db.ScoreLog{}).
		Select("player_id, COALESCE(SUM(points), 0) AS total").
		Where("game_id = ?", gameID).
		Group("player_id").
		Scan(&sums).Error
	if err != nil {
		return fmt.Errorf("sum score logs: %w", err)
	}
	logTotals := make(map[uint]int, len(sums))
	for _, row := range sums {
		logTotals[row.PlayerID] = row.Total
	}
	var scores []db.Score
	if err := e.db.WithContext(ctx).Where("game_id = ?", gameID).Order("player_id asc").Find(&scores).Error; err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	for _, score := range scores {
		if logTotals[score.PlayerID] != score.Points {
			return LedgerMismatch{PlayerID: score.PlayerID, Score: score.Points, LogSum: logTotals[score.PlayerID]}
		}
		delete(logTotals, score.PlayerID)
	}
	for playerID, total := range logTotals {
		if total != 0 {
			return LedgerMismatch{PlayerID: playerID, LogSum: total}
		}
	}
	return nil
}

// preview shortens fact text for score log descriptions.
func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func clip(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
