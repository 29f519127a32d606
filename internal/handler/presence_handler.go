package handler

import (
	"errors"
	"net/http"
	"time"

	"chat-realtime-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OnlineUsersResponse struct {
	UserIDs []uuid.UUID `json:"userIds"`
	Count   int         `json:"count"`
}

type UserStatusResponse struct {
	UserID   uuid.UUID  `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type PresenceHandler struct {
	presenceService service.PresenceService
	logger          *zap.Logger
}

func NewPresenceHandler(presenceService service.PresenceService, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		logger:          logger,
	}
}

// GetOnlineUsers returns online users
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	ids, err := h.presenceService.OnlineUserIDs(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get online users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to get online users"},
		})
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	c.JSON(http.StatusOK, OnlineUsersResponse{UserIDs: ids, Count: len(ids)})
}

// GetUserStatus returns a user's online status
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "BAD_REQUEST", "message": "Invalid user ID"},
		})
		return
	}

	lastSeen, err := h.presenceService.LastSeen(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "NOT_FOUND", "message": "User not found"},
			})
			return
		}
		h.logger.Error("failed to get last seen", zap.String("userId", userID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "Failed to get user status"},
		})
		return
	}

	c.JSON(http.StatusOK, UserStatusResponse{
		UserID:   userID,
		Online:   h.presenceService.IsOnline(userID),
		LastSeen: lastSeen,
	})
}
