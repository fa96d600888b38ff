package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gsPatrick/finance-os/internal/apperr"
)

// dateLayout is the wire format for calendar dates. Dates travel as
// plain strings and are parsed explicitly, so malformed input maps to a
// 400 instead of a binding panic.
const dateLayout = "2006-01-02"

// respondError maps a service error to its HTTP status. Errors outside
// the taxonomy are logged and surface as a generic 500.
func respondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseDate parses a required yyyy-mm-dd date.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperr.BadRequest("invalid date %q, expected yyyy-mm-dd", value)
	}
	return t, nil
}

// parseOptionalDate parses an optional yyyy-mm-dd date.
func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// idParam reads a numeric path parameter.
func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("invalid %s", name)
	}
	return uint(id), nil
}

// uintQuery reads an optional numeric query parameter.
func uintQuery(c *gin.Context, name string) (*uint, error) {
	value := c.Query(name)
	if value == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s", name)
	}
	u := uint(id)
	return &u, nil
}
