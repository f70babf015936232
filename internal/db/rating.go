package db

import "time"

type StoryRating struct {
	ID        uint      `gorm:"primaryKey"`
	FactID    uint      `gorm:"index;not null;uniqueIndex:idx_story_ratings_fact_rater"`
	RaterID   uint      `gorm:"index;not null;uniqueIndex:idx_story_ratings_fact_rater"`
	Rating    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
