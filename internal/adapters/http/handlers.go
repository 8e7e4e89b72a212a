package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/FrontDesk/internal/app/orch"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/dkeye/FrontDesk/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
}

type StatusRequest struct {
	Status domain.RoomStatus `json:"status"`
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.orch.Directory.Rooms(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *handlers) listReceptionists(c *gin.Context) {
	desks, err := h.orch.Directory.Receptionists(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	if desks == nil {
		desks = []domain.Receptionist{}
	}
	c.JSON(http.StatusOK, desks)
}

func (h *handlers) listPeers(c *gin.Context) {
	peers, err := h.orch.Peers(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

func (h *handlers) setRoomStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of AVAILABLE, OCCUPIED, CLEANING, MAINTENANCE"})
		return
	}
	slug := c.Param("slug")
	err := h.orch.Directory.SetRoomStatus(c.Request.Context(), slug, req.Status)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", slug).Str("status", string(req.Status)).Msg("room status changed")
	room, err := h.orch.Directory.Room(c.Request.Context(), slug)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func internalError(c *gin.Context, err error) {
	log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
