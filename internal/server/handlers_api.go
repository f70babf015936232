package server

import (
	"context"
	"net/http"
	"time"

	"github.com/AzaLess/guesswho/internal/db"
	"github.com/AzaLess/guesswho/internal/game"

	"github.com/gin-gonic/gin"
)

type tokenURI struct {
	Token string `uri:"token" binding:"required,max=12"`
}

type playerURI struct {
	Token    string `uri:"token" binding:"required,max=12"`
	PlayerID uint   `uri:"playerID" binding:"required"`
}

type createGameRequest struct {
	Name string `json:"name" binding:"omitempty,name"`
}

type joinRequest struct {
	Name string `json:"name" binding:"required,name"`
}

type actorRequest struct {
	PlayerID uint `json:"player_id" binding:"required"`
}

type factRequest struct {
	PlayerID uint   `json:"player_id" binding:"required"`
	Text     string `json:"text"`
}

type currentFactRequest struct {
	PlayerID uint  `json:"player_id" binding:"required"`
	FactID   *uint `json:"fact_id"`
}

type guessRequest struct {
	PlayerID        uint `json:"player_id" binding:"required"`
	FactID          uint `json:"fact_id" binding:"required"`
	GuessedPlayerID uint `json:"guessed_player_id" binding:"required"`
}

type storyRequest struct {
	PlayerID uint    `json:"player_id" binding:"required"`
	Story    *string `json:"story" binding:"omitempty,story"`
}

type ratingRequest struct {
	PlayerID uint `json:"player_id" binding:"required"`
	FactID   uint `json:"fact_id" binding:"required"`
	Rating   int  `json:"rating"`
}

type factResponse struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Text      string    `json:"text"`
	Guessed   bool      `json:"guessed"`
	CreatedAt time.Time `json:"created_at"`
}

var nameMessages = bindMessages{
	"Name": {
		"required": "name is required",
		"name":     "name must be 1-64 printable characters",
	},
}

var playerMessages = bindMessages{
	"PlayerID": {"required": "player_id is required"},
}

func (s *Server) handleCreateGame(c *gin.Context) {
	if !s.enforceRateLimit(c, "create") {
		return
	}
	var req createGameRequest
	if !bindJSON(c, &req, nameMessages, "invalid request") {
		return
	}
	g, host, err := s.engine.CreateGame(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":  g.Token,
		"game":   game.GameViewOf(g),
		"player": game.PlayerViewOf(host),
	})
}

func (s *Server) handleGetState(c *gin.Context) {
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	state, err := s.engine.GetState(c.Request.Context(), uri.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleJoinGame(c *gin.Context) {
	if !s.enforceRateLimit(c, "join") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req joinRequest
	if !bindJSON(c, &req, nameMessages, "invalid request") {
		return
	}
	player, err := s.engine.JoinGame(c.Request.Context(), uri.Token, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"player": game.PlayerViewOf(player)})
}

func (s *Server) handleStartGame(c *gin.Context) {
	s.handleHostAction(c, "start", s.engine.StartGame)
}

func (s *Server) handleEndGame(c *gin.Context) {
	s.handleHostAction(c, "end", s.engine.EndGame)
}

func (s *Server) handleHostAction(c *gin.Context, action string, run func(ctx context.Context, token string, playerID uint) (*db.Game, error)) {
	if !s.enforceRateLimit(c, action) {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req actorRequest
	if !bindJSON(c, &req, playerMessages, "invalid request") {
		return
	}
	g, err := run(c.Request.Context(), uri.Token, req.PlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game.GameViewOf(g)})
}

func (s *Server) handleSubmitFact(c *gin.Context) {
	if !s.enforceRateLimit(c, "facts") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req factRequest
	if !bindJSON(c, &req, playerMessages, "invalid request") {
		return
	}
	if !s.requirePlayer(c, uri.Token, req.PlayerID) {
		return
	}
	fact, err := s.engine.SubmitFact(c.Request.Context(), req.PlayerID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fact": factResponse{
		ID:        fact.ID,
		AuthorID:  fact.AuthorID,
		Text:      fact.Text,
		Guessed:   fact.Guessed,
		CreatedAt: fact.CreatedAt,
	}})
}

func (s *Server) handleSetCurrentFact(c *gin.Context) {
	if !s.enforceRateLimit(c, "current_fact") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req currentFactRequest
	if !bindJSON(c, &req, playerMessages, "invalid request") {
		return
	}
	choice := game.ClearFact()
	if req.FactID != nil {
		choice = game.SomeFact(*req.FactID)
	}
	g, err := s.engine.SetCurrentFact(c.Request.Context(), uri.Token, req.PlayerID, choice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game.GameViewOf(g)})
}

func (s *Server) handleSubmitGuess(c *gin.Context) {
	if !s.enforceRateLimit(c, "guesses") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req guessRequest
	if !bindJSON(c, &req, bindMessages{
		"PlayerID":        {"required": "player_id is required"},
		"FactID":          {"required": "fact_id is required"},
		"GuessedPlayerID": {"required": "guessed_player_id is required"},
	}, "invalid request") {
		return
	}
	if !s.requirePlayer(c, uri.Token, req.PlayerID) {
		return
	}
	guess, err := s.engine.SubmitLiveGuess(c.Request.Context(), req.PlayerID, req.FactID, req.GuessedPlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"guess": game.LiveGuessView{
		ID:              guess.ID,
		FactID:          guess.FactID,
		GuesserID:       guess.GuesserID,
		GuessedPlayerID: guess.GuessedPlayerID,
		IsCorrect:       guess.IsCorrect,
		CreatedAt:       guess.CreatedAt,
	}})
}

func (s *Server) handleFinishStory(c *gin.Context) {
	if !s.enforceRateLimit(c, "story") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req storyRequest
	if !bindJSON(c, &req, bindMessages{
		"PlayerID": {"required": "player_id is required"},
		"Story":    {"story": "story is too long"},
	}, "invalid request") {
		return
	}
	g, err := s.engine.FinishStory(c.Request.Context(), req.PlayerID, uri.Token, req.Story)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game.GameViewOf(g)})
}

func (s *Server) handleSubmitRating(c *gin.Context) {
	if !s.enforceRateLimit(c, "ratings") {
		return
	}
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	var req ratingRequest
	if !bindJSON(c, &req, bindMessages{
		"PlayerID": {"required": "player_id is required"},
		"FactID":   {"required": "fact_id is required"},
	}, "invalid request") {
		return
	}
	if !s.requirePlayer(c, uri.Token, req.PlayerID) {
		return
	}
	rating, err := s.engine.SubmitStoryRating(c.Request.Context(), req.PlayerID, req.FactID, req.Rating)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": game.StoryRatingView{
		ID:        rating.ID,
		FactID:    rating.FactID,
		RaterID:   rating.RaterID,
		Rating:    rating.Rating,
		UpdatedAt: rating.UpdatedAt,
	}})
}

func (s *Server) handleRemovePlayer(c *gin.Context) {
	if !s.enforceRateLimit(c, "kick") {
		return
	}
	var uri playerURI
	if !bindURI(c, &uri) {
		return
	}
	var req actorRequest
	if !bindJSON(c, &req, playerMessages, "invalid request") {
		return
	}
	g, err := s.engine.RemovePlayer(c.Request.Context(), uri.Token, req.PlayerID, uri.PlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game.GameViewOf(g)})
}

func (s *Server) handleScoreboard(c *gin.Context) {
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	scores, err := s.engine.Scoreboard(c.Request.Context(), uri.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (s *Server) handleEvents(c *gin.Context) {
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	page, perPage := parsePagination(c, 50, 200)
	events, total, err := s.engine.Events(c.Request.Context(), uri.Token, page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	pagination := buildPaginationData(c.Request.URL.Path, page, perPage, total)
	if pagination.Page != page {
		events, total, err = s.engine.Events(c.Request.Context(), uri.Token, pagination.Page, perPage)
		if err != nil {
			writeError(c, err)
			return
		}
		pagination = buildPaginationData(c.Request.URL.Path, pagination.Page, perPage, total)
	}
	c.JSON(http.StatusOK, gin.H{
		"events":     events,
		"pagination": pagination,
	})
}

// requirePlayer rejects actions posted under a token the player does not
// belong to.
func (s *Server) requirePlayer(c *gin.Context, token string, playerID uint) bool {
	if err := s.engine.CheckPlayer(c.Request.Context(), token, playerID); err != nil {
		writeError(c, err)
		return false
	}
	return true
}
