package match

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridizi/internal/scanlog"
	"ridizi/internal/vindex"
)

// alternativesPerMatch is how many runner-up suggestions a match returns
// alongside the top hit.
const alternativesPerMatch = 5

type Handler struct {
	Matcher   *Matcher
	Scans     *scanlog.Repo
	CoversDir string
}

func NewHandler(matcher *Matcher, scans *scanlog.Repo, coversDir string) *Handler {
	return &Handler{Matcher: matcher, Scans: scans, CoversDir: coversDir}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/match", h.match)
	r.StaticFS("/cover", http.Dir(h.CoversDir))
}

// match accepts a multipart image upload and responds with the top match
// plus alternatives, all ordered by ascending distance.
func (h *Handler) match(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.PostForm("username")

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		h.Scans.Record(ctx, "", "error", "no image file in match request",
			map[string]any{"request_info": "image match", "username": username})
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image upload"})
		return
	}

	suggestions, err := h.Matcher.Match(ctx, image, alternativesPerMatch)
	if err != nil {
		if errors.Is(err, vindex.ErrIndexUnavailable) {
			log.Printf("[match] index unavailable: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search index unavailable, try again later"})
			return
		}
		log.Printf("[match] match failed: %v", err)
		h.Scans.Record(ctx, "", "error", "match failed: "+err.Error(),
			map[string]any{"request_info": "image match", "username": username})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if len(suggestions) == 0 {
		h.Scans.Record(ctx, "", "not_found", "no books found for cover scan",
			map[string]any{"request_info": "image match", "username": username})
		c.JSON(http.StatusNotFound, gin.H{"error": "no valid book matches found"})
		return
	}

	top := suggestions[0]
	alternatives := suggestions[1:]

	h.Scans.Record(ctx, isbnOf(top.Filename), "success", "cover image scan successful",
		map[string]any{"request_info": "image match", "username": username})

	resp := gin.H{
		"filename":     top.Filename,
		"score":        top.Score,
		"title":        top.Title,
		"authors":      top.Authors,
		"cover_url":    top.CoverURL,
		"alternatives": alternatives,
	}
	if username != "" {
		resp["username"] = username
	}
	c.JSON(http.StatusOK, resp)
}

func isbnOf(filename string) string {
	return strings.TrimSuffix(filename, ".jpg")
}
