// Message HTTP handlers.
//
// This file exposes REST endpoints for direct messages between users:
//   - POST /messages                 (send)
//   - GET  /messages/unread          (unread count for the caller)
//   - GET  /threads/{userId}         (conversation with one user, paginated)
//   - POST /threads/{userId}/read    (mark the caller's side read)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (line endings, blank lines)
//   - delegate to application services (MessageService)
//   - map service errors to the shared envelope
package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a direct message.
//
// Content is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer. The service also enforces a
// maximum rune count, which can be configured in MessageService.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	Content     string `json:"content" binding:"required,min=1" example:"Is the duplex on Maple still available for a walkthrough?"`
}

// ThreadResponse contains a page of messages and pagination metadata.
type ThreadResponse struct {
	Messages   []domain.DirectMessage `json:"messages"`
	Pagination Pagination             `json:"pagination"`
}

// CountResponse carries a single counter.
type CountResponse struct {
	Count int64 `json:"count" example:"3"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF and CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a direct message
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.SendMessageRequest  true  "Message"
// @Success     201  {object}  domain.DirectMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipient not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient_id and content are required")
		return
	}
	m, err := h.msgs.Send(c.Request.Context(), userID(c), strings.TrimSpace(req.RecipientID), sanitizeContent(req.Content))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// UnreadMessages godoc
// @ID          unreadMessages
// @Summary     Count unread messages
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.CountResponse
// @Router      /messages/unread [get]
func (h *Handlers) UnreadMessages(c *gin.Context) {
	n, err := h.msgs.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// Thread godoc
// @ID          getThread
// @Summary     List the conversation with a user
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       userId     path   string  true   "Other participant"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ThreadResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{userId} [get]
func (h *Handlers) Thread(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.msgs.Thread(c.Request.Context(), userID(c), c.Param("userId"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ThreadResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}

// MarkThreadRead godoc
// @ID          markThreadRead
// @Summary     Mark messages from a user as read
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       userId  path  string  true  "Other participant"
// @Success     200  {object}  handlers.CountResponse  "Number of messages marked"
// @Router      /threads/{userId}/read [post]
func (h *Handlers) MarkThreadRead(c *gin.Context) {
	n, err := h.msgs.MarkRead(c.Request.Context(), userID(c), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}
