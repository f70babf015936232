package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type Fact struct {
	ID                 uint                `gorm:"primaryKey"`
	GameID             uint                `gorm:"index;not null"`
	AuthorID           uint                `gorm:"index;not null"`
	Text               string              `gorm:"type:text;not null"`
	Guessed            bool                `gorm:"index;not null;default:false"`
	Story              *string             `gorm:"type:text"`
	StoryRevealed      bool                `gorm:"not null;default:false"`
	StoryRatingAverage decimal.NullDecimal `gorm:"type:numeric(6,4)"`
	StoryRatingCount   int                 `gorm:"not null;default:0"`
	CreatedAt          time.Time           `gorm:"not null"`
	UpdatedAt          time.Time           `gorm:"not null"`
	LiveGuesses        []LiveGuess         `gorm:"constraint:OnDelete:CASCADE"`
	StoryRatings       []StoryRating       `gorm:"constraint:OnDelete:CASCADE"`
}
