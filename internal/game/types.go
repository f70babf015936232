package game

import "time"

const (
	PhaseGuessing     = "guessing"
	PhaseStorytelling = "storytelling"
	PhaseRating       = "rating"
)

const (
	CategoryCorrectGuess = "correct_guess"
	CategoryWrongGuesses = "wrong_guesses"
	CategoryStoryRating  = "story_rating"
)

const (
	minRating = 1
	maxRating = 3
)

// FactChoice is the payload of SetCurrentFact: either a fact to select or a
// request to clear the selection. The zero value clears.
type FactChoice struct {
	factID uint
	some   bool
}

func SomeFact(id uint) FactChoice {
	return FactChoice{factID: id, some: true}
}

func ClearFact() FactChoice {
	return FactChoice{}
}

// Get returns the selected fact id and whether one is set.
func (c FactChoice) Get() (uint, bool) {
	return c.factID, c.some
}

type PlayerView struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	IsHost           bool      `json:"is_host"`
	HasFinishedStory bool      `json:"has_finished_story"`
	HasRatedStory    bool      `json:"has_rated_story"`
	JoinedAt         time.Time `json:"joined_at"`
}

// FactView hides the author of a fact until it has been guessed.
type FactView struct {
	ID                 uint    `json:"id"`
	Text               string  `json:"text"`
	AuthorID           *uint   `json:"author_id"`
	AuthorName         string  `json:"author_name,omitempty"`
	Guessed            bool    `json:"guessed"`
	Story              *string `json:"story"`
	StoryRevealed      bool    `json:"story_revealed"`
	StoryRatingAverage *string `json:"story_rating_average"`
	StoryRatingCount   int     `json:"story_rating_count"`
}

type GameView struct {
	ID            uint       `json:"id"`
	Token         string     `json:"token"`
	Phase         string     `json:"phase"`
	Started       bool       `json:"started"`
	Ended         bool       `json:"ended"`
	CurrentFactID *uint      `json:"current_fact_id"`
	StoryTellerID *uint      `json:"story_teller_id"`
	LastFactAdded *time.Time `json:"last_fact_added"`
	CreatedAt     time.Time  `json:"created_at"`
}

type LiveGuessView struct {
	ID              uint      `json:"id"`
	FactID          uint      `json:"fact_id"`
	GuesserID       uint      `json:"guesser_id"`
	GuessedPlayerID *uint     `json:"guessed_player_id"`
	IsCorrect       bool      `json:"is_correct"`
	CreatedAt       time.Time `json:"created_at"`
}

type StoryRatingView struct {
	ID        uint      `json:"id"`
	FactID    uint      `json:"fact_id"`
	RaterID   uint      `json:"rater_id"`
	Rating    int       `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ScoreEntry struct {
	PlayerID   uint   `json:"player_id"`
	PlayerName string `json:"player_name"`
	Points     int    `json:"points"`
}

type ScoreLogView struct {
	ID          uint      `json:"id"`
	PlayerID    uint      `json:"player_id"`
	Points      int       `json:"points"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	FactID      *uint     `json:"fact_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// State is the polling snapshot returned by GetState.
type State struct {
	Game         GameView          `json:"game"`
	Players      []PlayerView      `json:"players"`
	Facts        []FactView        `json:"facts"`
	CurrentFact  *FactView         `json:"current_fact"`
	LiveGuesses  []LiveGuessView   `json:"live_guesses"`
	StoryRatings []StoryRatingView `json:"story_ratings"`
	Scores       []ScoreEntry      `json:"scores"`
	ScoreLogs    []ScoreLogView    `json:"score_logs"`
}

type EventView struct {
	ID        uint           `json:"id"`
	Type      string         `json:"type"`
	PlayerID  *uint          `json:"player_id"`
	FactID    *uint          `json:"fact_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
