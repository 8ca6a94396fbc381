package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scenekit/builder-backend/internal/common"
	"github.com/scenekit/builder-backend/internal/domain"
	"github.com/scenekit/builder-backend/internal/middleware"
	"github.com/scenekit/builder-backend/internal/service"
	"github.com/scenekit/builder-backend/pkg/ginutil"
)

// CurationHandler exposes collection and item curations over HTTP
type CurationHandler struct {
	curation *service.CurationService
	forum    *service.ForumService
}

// NewCurationHandler creates a new CurationHandler
func NewCurationHandler(curation *service.CurationService, forum *service.ForumService) *CurationHandler {
	return &CurationHandler{curation: curation, forum: forum}
}

// ListCurations handles GET /curations
// @Summary List curations
// @Description Latest collection curation of every collection visible to the caller (all of them for committee members)
// @Tags curations
// @Produce json
// @Success 200 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Security BearerAuth
// @Router /curations [get]
func (h *CurationHandler) ListCurations(c *gin.Context) {
	rows, err := h.curation.ListCurations(c.Request.Context(), middleware.GetCallerAddress(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, rows)
}

// ListItemCurations handles GET /collections/:id/itemCurations
// @Summary List item curations of a collection
// @Tags curations
// @Produce json
// @Param id path string true "collection id"
// @Param itemIds query []string false "item ids, repeated or comma separated"
// @Success 200 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/itemCurations [get]
func (h *CurationHandler) ListItemCurations(c *gin.Context) {
	rows, err := h.curation.ListItemCurations(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), ginutil.QueryList(c, "itemIds"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, rows)
}

// OpenItemCurations handles POST /collections/:id/itemCurations
// @Summary Open item reviews of a third-party collection
// @Tags curations
// @Accept json
// @Produce json
// @Param id path string true "collection id"
// @Param body body domain.OpenItemReviewsRequest true "items to review"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/itemCurations [post]
func (h *CurationHandler) OpenItemCurations(c *gin.Context) {
	var req domain.OpenItemReviewsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		common.HandleError(c, &common.ValidationError{ID: c.Param("id"), Message: "invalid item curations", Err: err})
		return
	}

	rows, err := h.curation.OpenThirdPartyItemReviews(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, rows)
}

// GetCollectionCuration handles GET /collections/:id/curation
// @Summary Get the latest collection curation
// @Tags curations
// @Produce json
// @Param id path string true "collection id"
// @Success 200 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/curation [get]
func (h *CurationHandler) GetCollectionCuration(c *gin.Context) {
	row, err := h.curation.GetCollectionCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

// InsertCollectionCuration handles POST /collections/:id/curation
// @Summary Open a collection review
// @Tags curations
// @Accept json
// @Produce json
// @Param id path string true "collection id"
// @Param body body domain.InsertCurationBody false "optional assignee"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/curation [post]
func (h *CurationHandler) InsertCollectionCuration(c *gin.Context) {
	req, ok := bindInsert(c)
	if !ok {
		return
	}
	row, err := h.curation.InsertCollectionCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

// UpdateCollectionCuration handles PATCH /collections/:id/curation
// @Summary Update the pending collection review
// @Description Approval reconciles the collection content first
// @Tags curations
// @Accept json
// @Produce json
// @Param id path string true "collection id"
// @Param body body domain.UpdateCurationBody true "status and assignee"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/curation [patch]
func (h *CurationHandler) UpdateCollectionCuration(c *gin.Context) {
	req, ok := bindUpdate(c)
	if !ok {
		return
	}
	row, err := h.curation.UpdateCollectionCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

// PostAssigneeNotification handles POST /collections/:id/curation/post
// @Summary Publish the assignee notification on the forum
// @Description Committee only. An existing post is reported, not failed.
// @Tags curations
// @Produce json
// @Param id path string true "collection id"
// @Success 200 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /collections/{id}/curation/post [post]
func (h *CurationHandler) PostAssigneeNotification(c *gin.Context) {
	result, err := h.forum.PostAssigneeNotification(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, result)
}

// GetItemCuration handles GET /items/:id/curation
// @Summary Get the latest item curation
// @Tags curations
// @Produce json
// @Param id path string true "item id"
// @Success 200 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Security BearerAuth
// @Router /items/{id}/curation [get]
func (h *CurationHandler) GetItemCuration(c *gin.Context) {
	row, err := h.curation.GetItemCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

// InsertItemCuration handles POST /items/:id/curation
// @Summary Open a new review of a previously curated item
// @Tags curations
// @Accept json
// @Produce json
// @Param id path string true "item id"
// @Param body body domain.InsertCurationBody false "optional assignee"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /items/{id}/curation [post]
func (h *CurationHandler) InsertItemCuration(c *gin.Context) {
	req, ok := bindInsert(c)
	if !ok {
		return
	}
	row, err := h.curation.InsertItemCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

// UpdateItemCuration handles PATCH /items/:id/curation
// @Summary Update the pending item review
// @Tags curations
// @Accept json
// @Produce json
// @Param id path string true "item id"
// @Param body body domain.UpdateCurationBody true "status and assignee"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 401 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Security BearerAuth
// @Router /items/{id}/curation [patch]
func (h *CurationHandler) UpdateItemCuration(c *gin.Context) {
	req, ok := bindUpdate(c)
	if !ok {
		return
	}
	row, err := h.curation.UpdateItemCuration(c.Request.Context(), c.Param("id"), middleware.GetCallerAddress(c), req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, row)
}

func bindUpdate(c *gin.Context) (*domain.UpdateCurationRequest, bool) {
	var body domain.UpdateCurationBody
	if !bindJSON(c, &body) {
		return nil, false
	}
	if err := body.Validate(); err != nil {
		common.HandleError(c, &common.ValidationError{ID: c.Param("id"), Message: "invalid curation", Err: err})
		return nil, false
	}
	return body.Curation, true
}

// bindInsert accepts an empty body
func bindInsert(c *gin.Context) (*domain.InsertCurationRequest, bool) {
	var body domain.InsertCurationBody
	if !bindJSON(c, &body) {
		return nil, false
	}
	if err := body.Validate(); err != nil {
		common.HandleError(c, &common.ValidationError{ID: c.Param("id"), Message: "invalid curation", Err: err})
		return nil, false
	}
	return body.Curation, true
}

// bindJSON binds the request body. An empty body leaves v untouched.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		common.HandleError(c, &common.ValidationError{ID: c.Param("id"), Message: "malformed body", Err: err})
		return false
	}
	return true
}

// NotFound answers unmatched routes with the standard envelope
func NotFound(c *gin.Context) {
	common.ErrorResponse(c, http.StatusNotFound, "route not found", nil)
}
