package db

import "time"

type Game struct {
	ID            uint       `gorm:"primaryKey"`
	Token         string     `gorm:"size:12;uniqueIndex;not null"`
	Phase         string     `gorm:"size:32;not null;default:guessing"`
	Started       bool       `gorm:"not null;default:false"`
	Ended         bool       `gorm:"not null;default:false"`
	CurrentFactID *uint      `gorm:"index"`
	StoryTellerID *uint      `gorm:"index"`
	LastFactAdded *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	Players       []Player   `gorm:"constraint:OnDelete:CASCADE"`
	Facts         []Fact     `gorm:"constraint:OnDelete:CASCADE"`
	Scores        []Score    `gorm:"constraint:OnDelete:CASCADE"`
	ScoreLogs     []ScoreLog `gorm:"constraint:OnDelete:CASCADE"`
	Events        []Event    `gorm:"constraint:OnDelete:CASCADE"`
}
