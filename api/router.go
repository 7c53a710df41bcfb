package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rfqscout/api/handler"
	"github.com/use-agent/rfqscout/api/middleware"
	"github.com/use-agent/rfqscout/config"
)

// Deps are the components the routes delegate to.
type Deps struct {
	Runner    handler.Runner
	Artifacts handler.ArtifactStore
	Driver    handler.DriverReporter
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work. ctx stops the
// rate limiter's background sweeper.
func NewRouter(ctx context.Context, deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(deps.Driver, deps.Runner, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(deps.Runner))

	protected.GET("/artifacts", handler.ListArtifacts(deps.Artifacts))
	protected.GET("/artifacts/:filename", handler.GetArtifact(deps.Artifacts))

	return r
}
