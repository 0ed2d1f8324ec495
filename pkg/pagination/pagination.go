// Package pagination reads page/limit query parameters and describes the
// resulting page to clients.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Meta is returned next to a page of results.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Parse extracts and validates page/limit from query parameters.
// Unparsable or out-of-range values fall back to the defaults.
func Parse(c *gin.Context) Params {
	return FromValues(c.Query("page"), c.Query("limit"))
}

// FromValues validates raw page and limit strings.
func FromValues(rawPage, rawLimit string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Meta describes the page p within total items.
func (p Params) Meta(total int64) Meta {
	pages := (total + int64(p.Limit) - 1) / int64(p.Limit)
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    int64(p.Page) < pages,
	}
}
