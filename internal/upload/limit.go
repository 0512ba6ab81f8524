package upload

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunehaven/tunehaven/internal/httpx"
)

const (
	// formOverhead covers the non-file fields and multipart framing.
	formOverhead = 1 << 20
	// multipartMemory is how much of a parsed form stays in memory before
	// spilling to temp files.
	multipartMemory = 8 << 20
)

// Limit caps the request body at the combined size limits of kinds plus
// formOverhead. Multipart bodies are parsed up front so an oversized upload
// is rejected before any handler runs.
func (s *Store) Limit(kinds ...Kind) gin.HandlerFunc {
	limit := int64(formOverhead)
	for _, k := range kinds {
		limit += s.maxSize[k]
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			httpx.Error(c, http.StatusBadRequest, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		if c.ContentType() == "multipart/form-data" {
			if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httpx.Error(c, http.StatusBadRequest, "request body too large")
					return
				}
				httpx.Error(c, http.StatusBadRequest, "malformed multipart body")
				return
			}
		}
		c.Next()
	}
}
