// Profile, directory and registration HTTP handlers.
//
//   - GET  /profiles/me                 (caller's profile, created on first use)
//   - GET  /profiles/{id}               (public profile)
//   - GET  /directory                   (professional directory, ranked by q)
//   - PUT  /registration/steps/{step}   (save one registration step)
//   - POST /registration/complete       (publish in the directory)
//   - POST /profiles/me/avatar          (multipart "file")
//   - POST /profiles/me/license         (multipart "file")
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/services"
)

// RegistrationStepRequest carries the fields of any registration step;
// fields that do not belong to the step being saved are ignored.
type RegistrationStepRequest struct {
	FullName string `json:"full_name" example:"Jane Doe"`
	Headline string `json:"headline" example:"Listing agent, Austin metro"`
	City     string `json:"city" example:"Austin"`
	State    string `json:"state" example:"TX"`

	ProfessionalType string `json:"professional_type" example:"agent"`
	LicenseNumber    string `json:"license_number" example:"TX-0654321"`
	LicenseState     string `json:"license_state" example:"TX"`
	YearsExperience  int    `json:"years_experience" example:"7"`

	Services []string `json:"services" example:"Buyer agent,Staging"`
	Bio      string   `json:"bio" example:"Helping first-time buyers since 2017."`
}

// DirectoryResponse wraps a page of professionals and pagination information.
type DirectoryResponse struct {
	Profiles   []domain.Profile `json:"profiles"`
	Pagination Pagination       `json:"pagination"`
}

// Me godoc
// @ID          getMyProfile
// @Summary     Get the caller's profile
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Profile
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /profiles/me [get]
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.profiles.Me(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get a profile
// @Description The license document URL is returned to the profile owner only.
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "User ID"
// @Success     200  {object}  domain.Profile
// @Failure     404  {object}  handlers.ErrorResponse  "Profile not found"
// @Router      /profiles/{id} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// BrowseDirectory godoc
// @ID          browseDirectory
// @Summary     Browse the professional directory
// @Description Filters by type and location; q ranks results by similarity to names, headlines, services and bios.
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Param       q          query  string  false  "Free-text query"
// @Param       type       query  string  false  "Professional type"  Enums(agent, broker, appraiser, inspector, lender, attorney, investor)
// @Param       city       query  string  false  "City"
// @Param       state      query  string  false  "State"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.DirectoryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown professional type"
// @Router      /directory [get]
func (h *Handlers) BrowseDirectory(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.profiles.Browse(c.Request.Context(), services.DirectoryQuery{
		Q:        c.Query("q"),
		Type:     c.Query("type"),
		City:     c.Query("city"),
		State:    c.Query("state"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, DirectoryResponse{Profiles: res.Items, Pagination: newPagination(page, pageSize, res.Total)})
}

// SaveRegistrationStep godoc
// @ID          saveRegistrationStep
// @Summary     Save a registration step
// @Description Steps are 1 basic info, 2 professional details, 3 services. A step can be saved once all earlier steps are.
// @Tags        Registration
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       step  path  int  true  "Step number"  minimum(1) maximum(3)
// @Param       body  body  handlers.RegistrationStepRequest  true  "Step fields"
// @Success     200  {object}  domain.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid fields or step out of order"
// @Router      /registration/steps/{step} [put]
func (h *Handlers) SaveRegistrationStep(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "step must be a number")
		return
	}
	var req RegistrationStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.profiles.SaveRegistrationStep(c.Request.Context(), userID(c), step, services.RegistrationInput{
		FullName:         req.FullName,
		Headline:         req.Headline,
		City:             req.City,
		State:            req.State,
		ProfessionalType: req.ProfessionalType,
		LicenseNumber:    req.LicenseNumber,
		LicenseState:     req.LicenseState,
		YearsExperience:  req.YearsExperience,
		Services:         req.Services,
		Bio:              req.Bio,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// CompleteRegistration godoc
// @ID          completeRegistration
// @Summary     Finish registration
// @Tags        Registration
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Steps not complete"
// @Router      /registration/complete [post]
func (h *Handlers) CompleteRegistration(c *gin.Context) {
	p, err := h.profiles.CompleteRegistration(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UploadAvatar godoc
// @ID          uploadAvatar
// @Summary     Upload a profile picture
// @Tags        Profiles
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "JPEG, PNG or WebP image"
// @Success     200  {object}  domain.Profile
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported type"
// @Failure     503  {object}  handlers.ErrorResponse  "Uploads disabled"
// @Router      /profiles/me/avatar [post]
func (h *Handlers) UploadAvatar(c *gin.Context) {
	ct, data, valid := h.readUpload(c)
	if !valid {
		return
	}
	p, err := h.profiles.UploadAvatar(c.Request.Context(), userID(c), ct, data)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UploadLicenseDocument godoc
// @ID          uploadLicenseDocument
// @Summary     Upload a license document
// @Tags        Registration
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "PDF or image"
// @Success     200  {object}  domain.Profile
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported type"
// @Failure     503  {object}  handlers.ErrorResponse  "Uploads disabled"
// @Router      /profiles/me/license [post]
func (h *Handlers) UploadLicenseDocument(c *gin.Context) {
	ct, data, valid := h.readUpload(c)
	if !valid {
		return
	}
	p, err := h.profiles.UploadLicenseDocument(c.Request.Context(), userID(c), ct, data)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// readUpload reads the "file" form part. At most MaxUploadBytes+1 bytes are
// read so the service can tell an oversized file from one at the limit.
func (h *Handlers) readUpload(c *gin.Context) (contentType string, data []byte, valid bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file is too large")
			return "", nil, false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return "", nil, false
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read upload")
		return "", nil, false
	}
	return fh.Header.Get("Content-Type"), data, true
}
