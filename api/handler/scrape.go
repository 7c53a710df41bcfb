package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rfqscout/models"
	"github.com/use-agent/rfqscout/runner"
)

// Runner starts scrape runs. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context) (*runner.Result, error)
	Stats() models.RunnerStats
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// The run is synchronous: the response is written once the artifact exists
// or the run has failed. A second trigger while a run is in progress gets
// 409 SCRAPE_BUSY.
func Scrape(rn Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rn.Run(c.Request.Context())
		if res == nil {
			respondError(c, err)
			return
		}

		resp := res.Response(models.ArtifactPath(res.Filename))
		if res.Err != nil {
			c.JSON(mapErrorToStatus(res.Err), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	scrapeErr := models.AsScrapeError(err)
	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Result:  scrapeErr.Reason(),
		Error:   scrapeErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeBusy:
		return http.StatusConflict // 409
	case models.ErrCodeDriverUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNoContentFound, models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeStaleSelectors:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
