package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/turuturustars/turuturustars-sub001/v1/utils"
	"gorm.io/gorm"
)

// HealthHandler reports whether the database is reachable
func HealthHandler(db *gorm.DB, serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		utils.RespondWithJSON(w, code, map[string]string{
			"service":   serviceName,
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
