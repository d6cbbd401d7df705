package http

import (
	"net/http"
	"strconv"

	"social-publisher/domain/apperror"
	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
	"social-publisher/usecase"

	"github.com/gin-gonic/gin"
)

const (
	ErrorUnmarshal = "Error while unmarshal"
)

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	ListTasks(ctx *gin.Context)
	GetTask(ctx *gin.Context)
	ListAttempts(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
}

func NewPublishHandler(publishUsecase usecase.IPublishUsecase) IPublishHandler {
	return &PublishHandler{publishUsecase: publishUsecase}
}

// writeError maps domain errors to their HTTP status.
func writeError(ctx *gin.Context, err error) {
	status := apperror.StatusOf(err)
	entry := logger.GetLogger().
		WithField("path", ctx.FullPath()).
		WithField("user_id", ctx.GetString("user_id")).
		WithField("status", status).
		WithField("error", err.Error())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	ctx.JSON(status, dto.NewErrorRes(err))
}

// Publish handles POST /api/publish
func (h *PublishHandler) Publish(ctx *gin.Context) {
	var req dto.PublishReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithField("error", err).Warn(ErrorUnmarshal)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorRes(apperror.Validation(err.Error())))
		return
	}

	res, err := h.publishUsecase.Execute(ctx.Request.Context(), ctx.GetString("user_id"), req.ToModel())
	if err != nil {
		writeError(ctx, err)
		return
	}
	if res.Scheduled != nil {
		ctx.JSON(http.StatusAccepted, res.Scheduled)
		return
	}
	ctx.JSON(http.StatusOK, res.Post)
}

// ListTasks handles GET /api/scheduled-tasks
func (h *PublishHandler) ListTasks(ctx *gin.Context) {
	tasks, err := h.publishUsecase.ListTasks(ctx.Request.Context(), ctx.GetString("user_id"), model.TaskStatus(ctx.Query("status")))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.TaskListRes{Tasks: tasks, Count: len(tasks)})
}

// GetTask handles GET /api/scheduled-tasks/:taskId
func (h *PublishHandler) GetTask(ctx *gin.Context) {
	task, err := h.publishUsecase.GetTask(ctx.Request.Context(), ctx.Param("taskId"), ctx.GetString("user_id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, task)
}

// ListAttempts handles GET /api/publish-attempts
func (h *PublishHandler) ListAttempts(ctx *gin.Context) {
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(ctx, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = v
	}
	attempts, err := h.publishUsecase.ListAttempts(ctx.Request.Context(), ctx.GetString("user_id"), limit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.AttemptListRes{Attempts: attempts, Count: len(attempts)})
}
