package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/utils"
)

// ListProjectsResponse wraps a page of projects and pagination information.
type ListProjectsResponse struct {
	Projects   []domain.CrowdfundingProject `json:"projects"`
	Pagination Pagination                   `json:"pagination"`
}

// ListPledgesResponse lists the caller's pledges.
type ListPledgesResponse struct {
	Pledges []domain.CrowdfundingPledge `json:"pledges"`
}

// ListProjects godoc
// @ID          listProjects
// @Summary     List crowdfunding projects
// @Description Without a status filter only projects accepting investments are listed.
// @Tags        Crowdfunding
// @Produce     json
// @Security    BearerAuth
// @Param       status     query  string  false  "Comma-separated statuses"  example(active,funded)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListProjectsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Router      /projects [get]
func (h *Handlers) ListProjects(c *gin.Context) {
	var statuses []domain.ProjectStatus
	for _, s := range utils.SplitCSV(strings.ToLower(c.Query("status"))) {
		st := domain.ProjectStatus(s)
		switch st {
		case domain.ProjectDraft, domain.ProjectActive, domain.ProjectFunded, domain.ProjectClosed:
			statuses = append(statuses, st)
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown project status: "+s)
			return
		}
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.funding.ListProjects(c.Request.Context(), statuses, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListProjectsResponse{Projects: items, Pagination: newPagination(page, pageSize, total)})
}

// GetProject godoc
// @ID          getProject
// @Summary     Get a project with its confirmed funding total
// @Tags        Crowdfunding
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Project ID"
// @Success     200  {object}  services.ProjectView
// @Failure     404  {object}  handlers.ErrorResponse  "Project not found"
// @Router      /projects/{id} [get]
func (h *Handlers) GetProject(c *gin.Context) {
	p, err := h.funding.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListMyPledges godoc
// @ID          listMyPledges
// @Summary     List the caller's pledges
// @Tags        Crowdfunding
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListPledgesResponse
// @Router      /pledges [get]
func (h *Handlers) ListMyPledges(c *gin.Context) {
	items, err := h.funding.ListMyPledges(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []domain.CrowdfundingPledge{}
	}
	ok(c, http.StatusOK, ListPledgesResponse{Pledges: items})
}
