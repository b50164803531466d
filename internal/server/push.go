package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/sync"
)

// handlePush sends one task to one linked provider issue.
func (s *Server) handlePush(c *gin.Context) {
	provider, err := model.ParseProvider(c.Param("provider"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := s.pusher.Push(c.Request.Context(), c.Param("id"), provider)
	if err != nil {
		s.respondError(c, pushStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handlePushAll sends one task to every provider it is linked to.
func (s *Server) handlePushAll(c *gin.Context) {
	results, err := s.pusher.PushAll(c.Request.Context(), c.Param("id"))
	if err != nil && results == nil {
		s.respondError(c, pushStatus(err), err)
		return
	}
	if err != nil {
		s.logger.Error("push partially failed",
			slog.String("task_id", c.Param("id")),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error(), "results": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

// pushStatus maps outbound failures to HTTP statuses. Anything not
// recognised is treated as a provider failure.
func pushStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sync.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, sync.ErrNotLinked), errors.Is(err, credential.ErrNoToken):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
