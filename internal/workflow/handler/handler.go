package handler

import (
	"errors"
	"io"
	"net/http"

	"indor_desk/internal/workflow/service"
	"indor_desk/internal/workflow/transport"
	"indor_desk/platform/httpkit"
	"indor_desk/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidClientID  = "invalid client id"
	msgInvalidStageID   = "invalid stage id"
	msgInvalidTaskID    = "invalid pending task id"
)

// Handler exposes the workflow operations over HTTP.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the workflow routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stages", h.ListStages)

	clients := rg.Group("/clients/:id")
	clients.POST("/stages/:stageId/start", h.StartStage)
	clients.POST("/stages/:stageId/complete", h.CompleteStage)
	clients.POST("/stages/:stageId/revert", h.RevertStage)
	clients.POST("/activities/:activityId/toggle", h.ToggleActivity)
	clients.GET("/notes", h.ListNotes)
	clients.POST("/notes", h.AddNote)

	tasks := rg.Group("/pending-tasks")
	tasks.GET("", h.ListPendingTasks)
	tasks.POST("", h.CreatePendingTask)
	tasks.GET("/:id", h.GetPendingTask)
	tasks.POST("/:id/resolve", h.ResolvePendingTask)
	tasks.POST("/:id/reopen", h.ReopenPendingTask)
}

func (h *Handler) ListStages(c *gin.Context) {
	result, err := h.svc.ListStages(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) StartStage(c *gin.Context) {
	clientID, stageID, ok := clientAndStage(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.StartStage(c.Request.Context(), clientID, stageID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) CompleteStage(c *gin.Context) {
	clientID, stageID, ok := clientAndStage(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CompleteStage(c.Request.Context(), clientID, stageID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) RevertStage(c *gin.Context) {
	clientID, stageID, ok := clientAndStage(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.RevertStage(c.Request.Context(), clientID, stageID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ToggleActivity(c *gin.Context) {
	clientID, ok := parseParam(c, "id", msgInvalidClientID)
	if !ok {
		return
	}
	activityID, ok := parseParam(c, "activityId", "invalid activity id")
	if !ok {
		return
	}

	// the body is optional; an empty one decodes to io.EOF
	var req transport.ToggleActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ToggleActivity(c.Request.Context(), clientID, activityID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListNotes(c *gin.Context) {
	clientID, ok := parseParam(c, "id", msgInvalidClientID)
	if !ok {
		return
	}
	result, err := h.svc.ListNotes(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) AddNote(c *gin.Context) {
	clientID, ok := parseParam(c, "id", msgInvalidClientID)
	if !ok {
		return
	}

	var req transport.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.AddNote(c.Request.Context(), clientID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) ListPendingTasks(c *gin.Context) {
	var req transport.ListPendingTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListPendingTasks(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) CreatePendingTask(c *gin.Context) {
	var req transport.CreatePendingTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CreatePendingTask(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) GetPendingTask(c *gin.Context) {
	taskID, ok := parseParam(c, "id", msgInvalidTaskID)
	if !ok {
		return
	}
	result, err := h.svc.GetPendingTask(c.Request.Context(), taskID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ResolvePendingTask(c *gin.Context) {
	taskID, ok := parseParam(c, "id", msgInvalidTaskID)
	if !ok {
		return
	}

	var req transport.ResolvePendingTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ResolvePendingTask(c.Request.Context(), taskID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ReopenPendingTask(c *gin.Context) {
	taskID, ok := parseParam(c, "id", msgInvalidTaskID)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ReopenPendingTask(c.Request.Context(), taskID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func parseParam(c *gin.Context, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.Nil, false
	}
	return id, true
}

func clientAndStage(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	clientID, ok := parseParam(c, "id", msgInvalidClientID)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	stageID, ok := parseParam(c, "stageId", msgInvalidStageID)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return clientID, stageID, true
}
