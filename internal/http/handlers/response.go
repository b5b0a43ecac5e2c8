// Package handlers adapts the marketplace services to Gin. Every failure is
// written as an ErrorResponse envelope whose Code is one of the constants in
// errors.go; the web client shows Error to the user verbatim.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/http/middleware"
	"github.com/tbourn/go-realty-backend/internal/utils"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Error     string `json:"error" example:"Offer not found"`
}

// fail aborts with the error envelope. 5xx answers are logged with the
// request-scoped logger; 4xx are the client's business.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Error:     msg,
	})
}

// Fail lets the router and auth middleware answer in the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// Pagination is the metadata block of list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// clampPagination reads page and page_size, substituting defaults for junk
// and bounding the size to [1, MaxPageSize].
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = max(utils.AtoiDefault(c.Query("page"), 1), 1)
	pageSize = utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize)
	pageSize = min(max(pageSize, 1), utils.MaxPageSize)
	return page, pageSize
}

// notModified sets a weak ETag derived from kind, owner and the numeric parts
// (typically a count and the newest update time) and reports whether the
// client's If-None-Match already names it, in which case 304 is written.
func notModified(c *gin.Context, kind, owner string, parts ...int64) bool {
	var b strings.Builder
	b.WriteString(`W/"`)
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(owner)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p, 10))
	}
	b.WriteByte('"')
	etag := b.String()

	c.Header("ETag", etag)
	if !etagMatches(c.GetHeader("If-None-Match"), etag) {
		return false
	}
	c.Status(http.StatusNotModified)
	return true
}

// etagMatches applies the weak comparison If-None-Match calls for: the list
// may hold several tags, "*" matches anything, and W/ prefixes are ignored.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, t := range strings.Split(header, ",") {
		t = strings.TrimSpace(t)
		if t == "*" || strings.TrimPrefix(t, "W/") == want {
			return true
		}
	}
	return false
}
