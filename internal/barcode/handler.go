// Package barcode is the scan intake: a scanned ISBN either already exists
// in the catalog, is already queued, or becomes a new pending-queue row for
// the ingestion worker. It also exposes the operator drain for entries the
// worker gave up on.
package barcode

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridizi/internal/catalog"
	"ridizi/internal/queue"
	"ridizi/internal/scanlog"
)

type Handler struct {
	Catalog *catalog.Repo
	Queue   *queue.Repo
	Scans   *scanlog.Repo
}

func NewHandler(catalogRepo *catalog.Repo, queueRepo *queue.Repo, scans *scanlog.Repo) *Handler {
	return &Handler{Catalog: catalogRepo, Queue: queueRepo, Scans: scans}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/barcode", h.scan)
	r.GET("/worker-errors", h.workerErrors)
	r.DELETE("/pending/:isbn", h.clearPending)
}

type scanRequest struct {
	ISBN string `json:"isbn" binding:"required"`
}

func (h *Handler) scan(c *gin.Context) {
	ctx := c.Request.Context()

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Scans.Record(ctx, "", "error", "no isbn provided", nil)
		c.JSON(http.StatusBadRequest, gin.H{"error": "no isbn provided"})
		return
	}

	isbn := strings.TrimSpace(req.ISBN)
	log.Printf("[barcode] scan received for %s", isbn)

	// Already cataloged? The scan may carry either encoding.
	book, err := h.Catalog.GetByISBN13(ctx, isbn)
	if err == nil && book == nil {
		book, err = h.Catalog.GetByISBN(ctx, isbn)
	}
	if err != nil {
		log.Printf("[barcode] catalog lookup failed for %s: %v", isbn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if book != nil {
		h.Scans.Record(ctx, isbn, "error", "book already in dataset", nil)
		c.JSON(http.StatusOK, gin.H{
			"message":            "book already in the catalog",
			"isbn":               book.ISBN,
			"already_in_dataset": true,
			"already_in_queue":   false,
			"title":              book.Title,
			"cover_url":          "/cover/" + book.ISBN + ".jpg",
		})
		return
	}

	pending, err := h.Queue.IsPending(ctx, isbn)
	if err != nil {
		log.Printf("[barcode] queue lookup failed for %s: %v", isbn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if pending {
		h.Scans.Record(ctx, isbn, "pending", "book already in queue", nil)
		c.JSON(http.StatusOK, gin.H{
			"message":            "book already waiting for processing",
			"isbn":               isbn,
			"already_in_dataset": false,
			"already_in_queue":   true,
		})
		return
	}

	if err := h.Queue.Enqueue(ctx, isbn); err != nil {
		// Most likely a concurrent scan hit the UNIQUE constraint first.
		log.Printf("[barcode] enqueue failed for %s: %v", isbn, err)
		c.JSON(http.StatusOK, gin.H{
			"message":            "book already waiting for processing",
			"isbn":               isbn,
			"already_in_dataset": false,
			"already_in_queue":   true,
		})
		return
	}

	h.Scans.Record(ctx, isbn, "success", "book added to pending queue", nil)
	c.JSON(http.StatusOK, gin.H{
		"message":            "book queued for processing",
		"isbn":               isbn,
		"already_in_dataset": false,
		"already_in_queue":   false,
	})
}

// workerErrors lists the stuck queue entries as error reports and removes
// them so they are reported exactly once.
func (h *Handler) workerErrors(c *gin.Context) {
	ctx := c.Request.Context()

	stuck, err := h.Queue.ListStuck(ctx)
	if err != nil {
		log.Printf("[barcode] list stuck failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	errs := make([]gin.H, 0, len(stuck))
	for _, entry := range stuck {
		errs = append(errs, gin.H{
			"isbn":    entry.ISBN,
			"message": "failed to process book " + entry.ISBN,
		})
		if err := h.Queue.Delete(ctx, entry.ID); err != nil {
			log.Printf("[barcode] clear stuck %s failed: %v", entry.ISBN, err)
		}
	}

	if len(errs) > 0 {
		log.Printf("[barcode] reported %d worker errors", len(errs))
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

// clearPending drops a queue entry by ISBN, stuck or not. Used by operators
// to give up on an entry without waiting for the error drain.
func (h *Handler) clearPending(c *gin.Context) {
	isbn := strings.TrimSpace(c.Param("isbn"))
	if isbn == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no isbn provided"})
		return
	}

	if err := h.Queue.DeleteByISBN(c.Request.Context(), isbn); err != nil {
		log.Printf("[barcode] clear pending %s failed: %v", isbn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pending entry cleared", "isbn": isbn})
}
