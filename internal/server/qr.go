package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// handleJoinQR renders a PNG QR code pointing at the join page for a game.
func (s *Server) handleJoinQR(c *gin.Context) {
	var uri tokenURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.CheckGame(c.Request.Context(), uri.Token); err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(c, uri.Token), qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// joinURL points at the frontend's join page. JOIN_BASE_URL names the
// frontend origin; without it the API's own host is assumed to serve it.
func (s *Server) joinURL(c *gin.Context, token string) string {
	base := strings.TrimRight(s.cfg.JoinBaseURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/join/" + token
}
