package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/listings"
	"github.com/PabloReca/busca-pisos/internal/models"
)

// ListingStore reads stored listings
type ListingStore interface {
	Listings(ctx context.Context, category models.Category) ([]models.Listing, error)
	Ping(ctx context.Context) error
}

// RefreshRunner triggers refreshes
type RefreshRunner interface {
	RunNow(ctx context.Context) models.RefreshSummary
	RunAsync() bool
}

// BotTester checks the notification bot
type BotTester interface {
	TestBot(ctx context.Context) models.BotStatus
}

type Handler struct {
	store     ListingStore
	refresher RefreshRunner
	bot       BotTester
	base      orb.Point
	logger    *logrus.Logger
}

// NewHandler creates the API handler. base is the point distances are
// measured from.
func NewHandler(store ListingStore, refresher RefreshRunner, bot BotTester, base orb.Point, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		store:     store,
		refresher: refresher,
		bot:       bot,
		base:      base,
		logger:    logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if err := h.store.Ping(c.Request.Context()); err != nil {
		msg := err.Error()
		if len(msg) > 50 {
			msg = msg[:50]
		}
		dbStatus = "error: " + msg
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"database":  dbStatus,
	})
}

// TelegramHealth checks the bot and sends a hello message
func (h *Handler) TelegramHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.bot.TestBot(c.Request.Context()))
}

func (h *Handler) loadViews(c *gin.Context, category models.Category) ([]listings.View, bool) {
	stored, err := h.store.Listings(c.Request.Context(), category)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load listings"})
		return nil, false
	}
	return listings.NewViews(stored, h.base), true
}

func (h *Handler) bindQuery(c *gin.Context) (listings.Query, bool) {
	var q listings.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		h.logger.WithError(err).Warn("Invalid listings query")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return q, false
	}
	return q, true
}

func (h *Handler) GetListings(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	views, ok := h.loadViews(c, "")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, listings.Run(views, q))
}

// GetListingsGeoJSON returns the filtered listings as a GeoJSON feature
// collection, ignoring pagination
func (h *Handler) GetListingsGeoJSON(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}

	views, ok := h.loadViews(c, "")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, listings.FeatureCollection(listings.Filter(views, q)))
}

func (h *Handler) GetStats(c *gin.Context) {
	views, ok := h.loadViews(c, "")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, listings.ComputeStats(views))
}

// Refresh runs a refresh and returns its summary
func (h *Handler) Refresh(c *gin.Context) {
	c.JSON(http.StatusOK, h.refresher.RunNow(c.Request.Context()))
}

func (h *Handler) RefreshAsync(c *gin.Context) {
	if !h.refresher.RunAsync() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Refresh started in background"})
}
