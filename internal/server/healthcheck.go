package server

import (
	"github.com/denisschmidt/localstore/constants"
	"github.com/gin-gonic/gin"
	"net/http"
	"time"
)

// healthCheck reports build info along with whether the store still answers.
func (h handlers) healthCheck(startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		uptime := time.Since(startedAt)

		status, storeStatus := http.StatusOK, "Ok"
		if _, err := h.db.List(c.Request.Context()); err != nil {
			status, storeStatus = http.StatusServiceUnavailable, "Unavailable"
		}

		c.JSON(status, gin.H{
			"service":               constants.Name,
			"started_at":            startedAt.String(),
			"uptime":                uptime.String(),
			"status":                storeStatus,
			"backend":               h.backend,
			"version":               constants.Version,
			"revision":              constants.Revision,
			"build_time":            constants.BuildTime,
			"compiler":              constants.Compiler,
			"latest_commit_message": constants.LatestCommitMessage,
			"ip_address":            c.ClientIP(),
		})
	}
}
