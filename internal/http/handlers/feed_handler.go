// Feed and notification HTTP handlers.
//
//   - POST   /posts                       (publish)
//   - GET    /posts?author=               (list, paginated)
//   - DELETE /posts/{id}                  (author only)
//   - GET    /notifications?unread=true   (list, paginated, ETag support)
//   - POST   /notifications/{id}/read     (owner only)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/sysutil"
)

// CreatePostRequest is the JSON payload for publishing to the feed.
type CreatePostRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"Open house this Sunday, 2-4pm, 118 Maple St."`
}

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

// ListNotificationsResponse wraps a page of notifications.
type ListNotificationsResponse struct {
	Notifications []domain.CrowdfundingNotification `json:"notifications"`
	Unread        int64                             `json:"unread"`
	Pagination    Pagination                        `json:"pagination"`
}

// CreatePost godoc
// @ID          createPost
// @Summary     Publish a post
// @Tags        Feed
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreatePostRequest  true  "Post"
// @Success     201  {object}  domain.Post
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long"
// @Router      /posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	p, err := h.feed.CreatePost(c.Request.Context(), userID(c), sanitizeContent(req.Content))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List the network feed
// @Tags        Feed
// @Produce     json
// @Security    BearerAuth
// @Param       author     query  string  false  "Only posts by this user"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPostsResponse
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.feed.ListPage(c.Request.Context(), c.Query("author"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: items, Pagination: newPagination(page, pageSize, total)})
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete one of the caller's posts
// @Tags        Feed
// @Security    BearerAuth
// @Param       id  path  string  true  "Post ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /posts/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	if err := h.feed.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List notifications (paginated)
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       unread         query   bool    false  "Only unread"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListNotificationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	unreadOnly := sysutil.IsTruthy(c.Query("unread"))
	page, pageSize := clampPagination(c)

	count, latest, unread, err := h.notes.Stats(ctx, uid)
	if err == nil {
		kind := "notifications"
		if unreadOnly {
			kind = "notifications-unread"
		}
		if notModified(c, kind, uid, count, latest, unread) {
			return
		}
	}

	items, total, err := h.notes.ListPage(ctx, uid, unreadOnly, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{
		Notifications: items,
		Unread:        unread,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id  path  string  true  "Notification ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Notification not found"
// @Router      /notifications/{id}/read [post]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.notes.MarkRead(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
