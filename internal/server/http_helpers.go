package server

import (
	"net/http"

	"github.com/AzaLess/guesswho/internal/game"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func statusFor(kind game.Kind) int {
	switch kind {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindInvalidInput:
		return http.StatusBadRequest
	case game.KindForbidden:
		return http.StatusForbidden
	case game.KindConflict:
		return http.StatusConflict
	case game.KindExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a game rejection as {"error", "reason"}. Anything that
// is not a rejection is logged and reported as a 500.
func writeError(c *gin.Context, err error) {
	kind := game.KindOf(err)
	if kind == game.KindInternal {
		log.WithFields(log.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).WithError(err).Error("request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "reason": "internal"})
		return
	}
	c.JSON(statusFor(kind), gin.H{"error": err.Error(), "reason": game.ReasonOf(err)})
}
