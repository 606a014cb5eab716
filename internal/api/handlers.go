package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mediad/internal/catalog"
	"mediad/internal/channels"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"channels": len(s.registry.ListChannels()),
	})
}

type channelSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	HomePageURL string            `json:"homePageUrl,omitempty"`
	Rating      string            `json:"parentalRating,omitempty"`
	Features    channels.Features `json:"features"`
}

func (s *Server) listChannels(c *gin.Context) {
	providers := s.registry.ListChannels()
	supportsLatest := c.Query("supportsLatest") == "true"
	canDownload := c.Query("canDownload") == "true"

	out := make([]channelSummary, 0, len(providers))
	for _, p := range providers {
		id, err := channels.InternalChannelID(p.Name())
		if err != nil {
			s.logger.Warn("skipping unlistable channel", "error", err)
			continue
		}
		if supportsLatest {
			if _, ok := p.(channels.LatestMediaLister); !ok {
				continue
			}
		}
		if canDownload && !p.Features().SupportsContentDownloading {
			continue
		}
		out = append(out, channelSummary{
			ID:          id.String(),
			Name:        p.Name(),
			Description: p.Description(),
			HomePageURL: p.HomePageURL(),
			Rating:      p.ParentalRating(),
			Features:    p.Features(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": out, "total": len(out)})
}

func (s *Server) refreshChannels(c *gin.Context) {
	if err := s.registry.RefreshAllChannels(c.Request.Context(), nil); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (s *Server) channelItems(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	q := channels.Query{
		ChannelID:      id,
		FolderID:       c.Query("folderId"),
		SortBy:         c.Query("sortBy"),
		SortDescending: c.Query("sortOrder") == "desc",
		Start:          intQuery(c, "start"),
		Limit:          intQuery(c, "limit"),
	}
	result, err := s.manager.GetChannelItems(c.Request.Context(), q, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result.Items, "total": result.Total})
}

func (s *Server) allMedia(c *gin.Context) {
	q, ok := aggregateQuery(c)
	if !ok {
		return
	}
	result, err := s.manager.GetAllMedia(c.Request.Context(), q, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result.Items, "total": result.Total})
}

func (s *Server) latestMedia(c *gin.Context) {
	q, ok := aggregateQuery(c)
	if !ok {
		return
	}
	result, err := s.manager.GetLatestMedia(c.Request.Context(), q, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result.Items, "total": result.Total})
}

func (s *Server) getItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := s.items.RetrieveItem(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": item.TypeTag(), "item": item})
}

func (s *Server) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.items.DeleteItem(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) downloadItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	key, err := s.downloader.Download(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": key})
}

func (s *Server) getChapters(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	chapters, err := s.satellites.GetChapters(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters, "total": len(chapters)})
}

func (s *Server) getStreams(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	streams, err := s.satellites.GetMediaStreams(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams, "total": len(streams)})
}

func (s *Server) getReviews(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reviews, err := s.reviews.Get(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "total": len(reviews)})
}

func (s *Server) saveReviews(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var reviews []catalog.CriticReview
	if err := c.ShouldBindJSON(&reviews); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review payload"})
		return
	}
	if err := s.reviews.Save(id, reviews); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "total": len(reviews)})
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrNilID):
		status = http.StatusBadRequest
	case errors.Is(err, catalog.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, catalog.ErrContentMismatch), errors.Is(err, catalog.ErrSourceRejected):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) int {
	value := c.Query(name)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func aggregateQuery(c *gin.Context) (channels.AggregateQuery, bool) {
	q := channels.AggregateQuery{
		ContentTypes:   splitQuery(c, "contentTypes"),
		ExtraTypes:     splitQuery(c, "extraTypes"),
		SortBy:         c.Query("sortBy"),
		SortDescending: c.Query("sortOrder") == "desc",
		Start:          intQuery(c, "start"),
		Limit:          intQuery(c, "limit"),
	}
	for _, raw := range splitQuery(c, "channelIds") {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
			return q, false
		}
		q.ChannelIDs = append(q.ChannelIDs, id)
	}
	return q, true
}

func splitQuery(c *gin.Context, name string) []string {
	value := c.Query(name)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
