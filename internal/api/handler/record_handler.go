package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/catalogsync/internal/domain"
	"github.com/timmy/catalogsync/internal/logger"
	"github.com/timmy/catalogsync/internal/repository"
	"github.com/timmy/catalogsync/internal/textnorm"
)

// RecordLookup reads catalog rows by id or title. *repository.CatalogRepository implements it.
type RecordLookup interface {
	GetByID(ctx context.Context, id string) (*domain.CatalogRecord, error)
	FindByNormalizedTitle(ctx context.Context, key string, limit int) ([]domain.CatalogRecord, error)
}

// GetRecord handles GET /records/:id.
func (h *AdminHandler) GetRecord(c *gin.Context) {
	record, err := h.deps.Records.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		logger.CtxError(c.Request.Context(), "Failed to load record: id=%s, error=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// FindRecords handles GET /records?title=...; the title is normalized before lookup
// so operators can paste a raw file name.
func (h *AdminHandler) FindRecords(c *gin.Context) {
	title := c.Query("title")
	key := textnorm.Normalize(textnorm.StripNoise(title))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > maxBatchLimit {
		limit = 20
	}

	records, err := h.deps.Records.FindByNormalizedTitle(c.Request.Context(), key, limit)
	if err != nil {
		logger.CtxError(c.Request.Context(), "Record lookup failed: key=%s, error=%v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records), "key": key})
}
