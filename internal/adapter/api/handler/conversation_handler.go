package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/infrastructure/scheduler"
	"bibomarket/internal/infrastructure/storage"
	"bibomarket/internal/usecase"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/response"
	"bibomarket/pkg/utils"
)

// JobRunner runs a poll job on demand, sharing any run in flight.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
	jobs                JobRunner
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase, jobs JobRunner) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
		jobs:                jobs,
	}
}

type sendMessageRequest struct {
	Content  string `json:"content" form:"content"`
	MediaRef string `json:"mediaRef" form:"mediaRef"`
}

type stageMediaRequest struct {
	Ref string `json:"ref" validate:"required"`
}

type openMenuRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

type startEditRequest struct {
	MessageID string `json:"messageId" validate:"required"`
}

type editDraftRequest struct {
	Content string `json:"content"`
}

// ListConversations reloads the conversation list. page and limit are
// optional.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	if err := h.conversationUseCase.LoadConversations(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	conversations := h.conversationUseCase.View().Conversations
	if !utils.Requested(c) {
		return response.Success(c, conversations)
	}

	pagination := utils.GetPaginationParams(c)
	start, end := pagination.Window(len(conversations))
	return response.Paginated(c, conversations[start:end], int64(len(conversations)), pagination.Page, pagination.PageSize)
}

func (h *ConversationHandler) OpenChat(c echo.Context) error {
	partnerID := c.Param("partnerId")
	if partnerID == "" {
		return response.Error(c, errors.BadRequest("Partner ID is required", nil))
	}

	if err := h.conversationUseCase.OpenChat(c.Request().Context(), partnerID); err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	return response.Success(c, h.conversationUseCase.View())
}

func (h *ConversationHandler) Refresh(c echo.Context) error {
	if err := h.jobs.RunNow(c.Request().Context(), scheduler.JobSelectedThread); err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	return response.Success(c, h.conversationUseCase.View())
}

func (h *ConversationHandler) GetView(c echo.Context) error {
	return response.Success(c, h.conversationUseCase.View())
}

// SendMessage accepts JSON or a multipart form whose optional "media"
// part is staged before sending.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if file, err := c.FormFile("media"); err == nil {
		media, err := storage.FromMultipart(file)
		if err != nil {
			return response.Failure(c, err, h.conversationUseCase.View())
		}
		if _, err := h.conversationUseCase.StageMedia(media); err != nil {
			return response.Failure(c, err, h.conversationUseCase.View())
		}
	} else if err != http.ErrMissingFile && err != http.ErrNotMultipart {
		return response.Error(c, errors.BadRequest("Cannot read uploaded file", err))
	}

	if ref := strings.TrimSpace(req.MediaRef); ref != "" {
		if _, err := h.conversationUseCase.StageMediaRef(ctx, ref); err != nil {
			return response.Failure(c, err, h.conversationUseCase.View())
		}
	}

	message, err := h.conversationUseCase.Send(ctx, req.Content)
	if err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	if message == nil {
		return response.Success(c, h.conversationUseCase.View())
	}
	return response.Created(c, message)
}

func (h *ConversationHandler) StageMedia(c echo.Context) error {
	var (
		attachment *entity.MediaAttachment
		err        error
	)

	if file, ferr := c.FormFile("media"); ferr == nil {
		var media *entity.MediaFile
		media, err = storage.FromMultipart(file)
		if err == nil {
			attachment, err = h.conversationUseCase.StageMedia(media)
		}
	} else {
		var req stageMediaRequest
		if err := c.Bind(&req); err != nil {
			return response.Error(c, errors.BadRequest("Invalid request body", err))
		}
		if err := c.Validate(&req); err != nil {
			return response.Error(c, err)
		}
		attachment, err = h.conversationUseCase.StageMediaRef(c.Request().Context(), req.Ref)
	}

	if err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	return response.Success(c, attachment)
}

func (h *ConversationHandler) RemoveMedia(c echo.Context) error {
	h.conversationUseCase.RemoveMedia()
	return response.Success(c, h.conversationUseCase.View())
}

func (h *ConversationHandler) OpenMenu(c echo.Context) error {
	var req openMenuRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.conversationUseCase.OpenMenu(req.MessageID, usecase.Position{X: req.X, Y: req.Y}); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, h.conversationUseCase.View().Mode)
}

func (h *ConversationHandler) CloseMenu(c echo.Context) error {
	h.conversationUseCase.CloseMenu()
	return response.Success(c, h.conversationUseCase.View().Mode)
}

func (h *ConversationHandler) HandleClick(c echo.Context) error {
	var target usecase.ClickTarget
	if err := c.Bind(&target); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	closed := h.conversationUseCase.HandleClick(target)
	return response.Success(c, map[string]interface{}{
		"closed": closed,
		"mode":   h.conversationUseCase.View().Mode,
	})
}

func (h *ConversationHandler) StartEdit(c echo.Context) error {
	var req startEditRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.conversationUseCase.StartEdit(req.MessageID); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, h.conversationUseCase.View().Mode)
}

func (h *ConversationHandler) SetEditDraft(c echo.Context) error {
	var req editDraftRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := h.conversationUseCase.SetEditDraft(req.Content); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, h.conversationUseCase.View().Mode)
}

func (h *ConversationHandler) SaveEdit(c echo.Context) error {
	message, err := h.conversationUseCase.SaveEdit(c.Request().Context())
	if err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	return response.Success(c, message)
}

func (h *ConversationHandler) CancelEdit(c echo.Context) error {
	h.conversationUseCase.CancelEdit()
	return response.Success(c, h.conversationUseCase.View().Mode)
}

func (h *ConversationHandler) DeleteMessage(c echo.Context) error {
	messageID := c.Param("id")
	if messageID == "" {
		return response.Error(c, errors.BadRequest("Message ID is required", nil))
	}

	forEveryone := false
	if raw := c.QueryParam("forEveryone"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return response.Error(c, errors.BadRequest("forEveryone must be true or false", err))
		}
		forEveryone = parsed
	}

	if err := h.conversationUseCase.Delete(c.Request().Context(), messageID, forEveryone); err != nil {
		return response.Failure(c, err, h.conversationUseCase.View())
	}
	return response.Success(c, h.conversationUseCase.View())
}

func (h *ConversationHandler) SearchMessages(c echo.Context) error {
	messages, err := h.conversationUseCase.Search(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return response.Error(c, err)
	}

	if !utils.Requested(c) {
		return response.Success(c, messages)
	}
	pagination := utils.GetPaginationParams(c)
	start, end := pagination.Window(len(messages))
	return response.Paginated(c, messages[start:end], int64(len(messages)), pagination.Page, pagination.PageSize)
}
