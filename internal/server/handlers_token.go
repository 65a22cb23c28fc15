package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleToken acquires (or reuses) the OAuth token through the cache so the
// dashboard can display acquisition state without holding credentials.
func (s *Server) handleToken(c echo.Context) error {
	token, err := s.tokens.Token(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "Bearer",
	})
}
