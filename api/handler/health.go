package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rfqscout/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// DriverReporter reports browser driver availability. *scraper.Driller
// implements it.
type DriverReporter interface {
	Stats() models.DriverStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the driver binary is missing, since every run would
// fail with DRIVER_UNAVAILABLE.
func Health(drv DriverReporter, rn Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		driver := drv.Stats()

		status := "healthy"
		if !driver.Available {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Driver:  driver,
			Runner:  rn.Stats(),
			Version: Version,
		})
	}
}
