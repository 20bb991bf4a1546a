package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// Health returns a status payload useful for readiness checks. The database
// is pinged so a wedged connection pool shows up as unavailable.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(requestContext(c))
			}
			if err != nil {
				response.Error(c, errors.ErrUnavailable.WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
