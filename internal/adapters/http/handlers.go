package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/blogrelay/internal/app"
	"github.com/dkeye/blogrelay/internal/domain"
)

const queryTimeout = 2 * time.Second

type Handlers struct {
	Relay *app.Relay
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	rooms, err := h.Relay.Rooms(ctx)
	if err != nil {
		unavailable(c, err)
		return
	}
	if rooms == nil {
		rooms = []domain.RoomInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	info, ok, err := h.Relay.Room(ctx, domain.RoomKey(c.Param("key")))
	if err != nil {
		unavailable(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handlers) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := h.Relay.Stats(ctx)
	if err != nil {
		unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func unavailable(c *gin.Context, err error) {
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("relay query failed")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relay unavailable"})
}
