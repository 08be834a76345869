package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes wires the session lifecycle endpoints
func RegisterSessionRoutes(rg *gin.RouterGroup, handler *SessionHandler) {
	rg.POST("/sessions", handler.CreateSession)
	rg.GET("/sessions/list", handler.ListSessions)
	rg.POST("/sessions/:session_id/rename", handler.RenameSession)
	rg.POST("/sessions/:session_id/archive", handler.ArchiveSession)
	rg.DELETE("/sessions/:session_id", handler.DeleteSession)
}
