package http

import (
	"net/http"

	"github.com/dkeye/Trio/internal/app"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/gin-gonic/gin"
)

type StatsResponse struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

type RoomResponse struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
	Capacity    int           `json:"capacity"`
	Full        bool          `json:"full"`
}

type handlers struct {
	router *app.Router
}

func (h *handlers) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Rooms:        len(h.router.Rooms.List()),
		Participants: h.router.Registry.Count(),
	})
}

// room answers for a single id only; rooms are never enumerated because the
// id is the access token.
func (h *handlers) room(c *gin.Context) {
	raw := c.Param("id")
	if err := domain.ValidateRoomID(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := domain.RoomID(raw)
	resp := RoomResponse{ID: id, Capacity: domain.MaxRoomMembers}
	if room, ok := h.router.Rooms.Get(id); ok {
		resp.MemberCount = room.MemberCount()
	}
	resp.Full = resp.MemberCount >= resp.Capacity
	c.JSON(http.StatusOK, resp)
}
