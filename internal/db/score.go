package db

import "time"

type Score struct {
	ID        uint      `gorm:"primaryKey"`
	PlayerID  uint      `gorm:"not null;uniqueIndex:idx_scores_player_game"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_scores_player_game"`
	Points    int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ScoreLog rows are never updated. Their points always sum to the matching
// Score.Points.
type ScoreLog struct {
	ID          uint      `gorm:"primaryKey"`
	PlayerID    uint      `gorm:"index;not null"`
	GameID      uint      `gorm:"index;not null"`
	Points      int       `gorm:"not null"`
	Category    string    `gorm:"size:32;not null"`
	Description string    `gorm:"size:280;not null"`
	FactID      *uint     `gorm:"index"`
	CreatedAt   time.Time `gorm:"index;not null"`
}
