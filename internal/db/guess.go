package db

import "time"

// LiveGuess is append-only; a guesser holds at most one row per fact.
// GuessedPlayerID is cleared when the named player leaves the game.
type LiveGuess struct {
	ID              uint      `gorm:"primaryKey"`
	FactID          uint      `gorm:"index;not null;uniqueIndex:idx_live_guesses_fact_guesser"`
	GuesserID       uint      `gorm:"index;not null;uniqueIndex:idx_live_guesses_fact_guesser"`
	GuessedPlayerID *uint     `gorm:"index"`
	IsCorrect       bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"not null"`
}
