package handlers

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaginatedResponse is the envelope of every paginated API response.
type PaginatedResponse struct {
	Data        interface{} `json:"data"`
	TotalRows   int64       `json:"totalRows"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageParams reads "page" and "pageSize" query parameters and returns
// the page plus the limit/offset pair the service listings expect.
func pageParams(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.Query("pageSize"))
	switch {
	case limit > maxPageSize:
		limit = maxPageSize
	case limit <= 0:
		limit = defaultPageSize
	}

	return page, limit, (page - 1) * limit
}

// paginated wraps rows in the standard envelope.
func paginated(data interface{}, totalRows int64, page, pageSize int) PaginatedResponse {
	totalPages := int(math.Ceil(float64(totalRows) / float64(pageSize)))
	return PaginatedResponse{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}
