package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rfqscout/models"
)

// ArtifactStore lists and locates CSV artifacts. *sink.CSV implements it.
type ArtifactStore interface {
	List() ([]models.Artifact, error)
	Path(name string) (string, error)
}

// ListArtifacts returns a handler for GET /api/v1/artifacts.
func ListArtifacts(store ArtifactStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifacts, err := store.List()
		if err != nil {
			se := models.AsScrapeError(err)
			c.JSON(mapErrorToStatus(se), models.ArtifactsResponse{
				Success:   false,
				Artifacts: []models.Artifact{},
				Error:     se.ToDetail(),
			})
			return
		}
		c.JSON(http.StatusOK, models.ArtifactsResponse{Success: true, Artifacts: artifacts})
	}
}

// GetArtifact returns a handler for GET /api/v1/artifacts/:filename that
// serves the CSV as a download.
func GetArtifact(store ArtifactStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		path, err := store.Path(name)
		if err != nil {
			respondError(c, err)
			return
		}

		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "artifact not found: "+name, nil))
			return
		}
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeStorage, "cannot read artifact", err))
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.FileAttachment(path, name)
	}
}
