// Package api exposes the media core over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mediad/internal/catalog"
	"mediad/internal/channels"
)

// Downloader fetches one item's content into storage and returns the
// storage key.
type Downloader interface {
	Download(ctx context.Context, itemID uuid.UUID) (string, error)
}

// SatelliteReader reads the chapter and media stream rows of an item.
type SatelliteReader interface {
	GetChapters(ctx context.Context, itemID uuid.UUID) ([]catalog.Chapter, error)
	GetMediaStreams(ctx context.Context, itemID uuid.UUID) ([]catalog.MediaStream, error)
}

// ReviewStore reads and writes an item's critic reviews.
type ReviewStore interface {
	Get(itemID uuid.UUID) ([]catalog.CriticReview, error)
	Save(itemID uuid.UUID, reviews []catalog.CriticReview) error
}

// Server holds the handler dependencies.
type Server struct {
	registry   *channels.Registry
	manager    *channels.Manager
	downloader Downloader
	items      catalog.ItemStore
	satellites SatelliteReader
	reviews    ReviewStore
	logger     catalog.Logger
}

func NewServer(registry *channels.Registry, manager *channels.Manager, downloader Downloader, items catalog.ItemStore, satellites SatelliteReader, reviews ReviewStore, logger catalog.Logger) *Server {
	return &Server{
		registry:   registry,
		manager:    manager,
		downloader: downloader,
		items:      items,
		satellites: satellites,
		reviews:    reviews,
		logger:     logger,
	}
}

// SetupRouter builds the gin engine with all routes registered. mode is one
// of gin's run modes.
func SetupRouter(s *Server, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	engine := gin.New()
	if gin.Mode() != gin.ReleaseMode {
		engine.Use(gin.Logger())
	}
	engine.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		s.logger.Error("handler panicked", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(500, gin.H{"error": "internal error"})
	}))
	engine.Use(CORSMiddleware())

	api := engine.Group("/api")
	{
		api.GET("/health", s.health)

		api.GET("/channels", s.listChannels)
		api.POST("/channels/refresh", s.refreshChannels)
		api.GET("/channels/:id/items", s.channelItems)

		api.GET("/media/all", s.allMedia)
		api.GET("/media/latest", s.latestMedia)

		api.GET("/items/:id", s.getItem)
		api.DELETE("/items/:id", s.deleteItem)
		api.POST("/items/:id/download", s.downloadItem)
		api.GET("/items/:id/chapters", s.getChapters)
		api.GET("/items/:id/streams", s.getStreams)
		api.GET("/items/:id/reviews", s.getReviews)
		api.POST("/items/:id/reviews", s.saveReviews)
	}

	return engine
}
