package db

import "time"

type Player struct {
	ID               uint      `gorm:"primaryKey"`
	GameID           uint      `gorm:"index;not null"`
	Name             string    `gorm:"size:64;not null"`
	IsHost           bool      `gorm:"not null;default:false"`
	HasFinishedStory bool      `gorm:"not null;default:false"`
	HasRatedStory    bool      `gorm:"not null;default:false"`
	JoinedAt         time.Time `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	Facts            []Fact    `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Scores           []Score   `gorm:"constraint:OnDelete:CASCADE"`
}
