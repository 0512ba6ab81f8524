// Package httpx holds the response helpers shared by the feature handlers.
package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/validate"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Invalid answers 400 with the field errors behind a failed bind.
func Invalid(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"fields": validate.Fields(err),
	})
}

// InvalidField answers 400 for a single field checked by hand.
func InvalidField(c *gin.Context, field, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"fields": []validate.FieldError{{Field: field, Message: msg}},
	})
}

// Internal logs err and answers 500 without leaking it.
func Internal(c *gin.Context, log *zap.Logger, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("path", c.FullPath()), zap.Error(err))
	log.Error("request failed", fields...)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// StoreError maps storage.ErrNotFound to 404 and anything else to 500.
func StoreError(c *gin.Context, log *zap.Logger, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		Error(c, http.StatusNotFound, what+" not found")
		return
	}
	Internal(c, log, err)
}

// ParamID parses a positive integer path parameter, answering 400 otherwise.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		InvalidField(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

// QueryInt returns the named query value, or def when it is missing or not a
// positive integer.
func QueryInt(c *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
