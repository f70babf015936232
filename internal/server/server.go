package server

import (
	"net/http"
	"time"

	"github.com/AzaLess/guesswho/internal/config"
	"github.com/AzaLess/guesswho/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

type Server struct {
	engine  *game.Engine
	cfg     config.Config
	limiter *httprate.RateLimiter
}

func New(engine *game.Engine, cfg config.Config) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = httprate.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api/games")
	api.POST("", s.handleCreateGame)
	api.GET("/:token", s.handleGetState)
	api.POST("/:token/join", s.handleJoinGame)
	api.POST("/:token/start", s.handleStartGame)
	api.POST("/:token/end", s.handleEndGame)
	api.POST("/:token/facts", s.handleSubmitFact)
	api.POST("/:token/current-fact", s.handleSetCurrentFact)
	api.POST("/:token/guesses", s.handleSubmitGuess)
	api.POST("/:token/story", s.handleFinishStory)
	api.POST("/:token/ratings", s.handleSubmitRating)
	api.DELETE("/:token/players/:playerID", s.handleRemovePlayer)
	api.GET("/:token/scoreboard", s.handleScoreboard)
	api.GET("/:token/events", s.handleEvents)
	api.GET("/:token/qr.png", s.handleJoinQR)

	return cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
