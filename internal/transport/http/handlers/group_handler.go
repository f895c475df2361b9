package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creatorsgardenofficial/garden-messaging/internal/service"
	"github.com/creatorsgardenofficial/garden-messaging/internal/transport/http/middleware"
	"github.com/creatorsgardenofficial/garden-messaging/pkg/validator"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateGroup(input.Name, input.MemberPublicIDs); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	group, err := h.groupService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyGroupName):
			writeError(w, http.StatusBadRequest, "MISSING_NAME", "Group name is required")
		case errors.Is(err, service.ErrEmptyMembership):
			writeError(w, http.StatusBadRequest, "EMPTY_MEMBERSHIP", "No valid members could be resolved")
		default:
			log.Error().Err(err).Msg("create group chat")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groups, err := h.groupService.ListGroups(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list group chats")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	group, err := h.groupService.GetByID(r.Context(), userID, groupID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		case errors.Is(err, service.ErrNotAMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this group chat")
		default:
			log.Error().Err(err).Msg("get group chat")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	if err := h.groupService.AddParticipant(r.Context(), groupID, userID, input.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		case errors.Is(err, service.ErrNotAMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this group chat")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Error().Err(err).Msg("add group participant")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	if err := h.groupService.Leave(r.Context(), groupID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		default:
			log.Error().Err(err).Msg("leave group chat")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessageContent(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.groupService.SendMessage(r.Context(), groupID, userID, input.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		case errors.Is(err, service.ErrNotAMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this group chat")
		case errors.Is(err, service.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Message content is required")
		default:
			log.Error().Err(err).Msg("send group message")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *GroupHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	before, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	resp, err := h.groupService.ListMessages(r.Context(), userID, groupID, before, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		case errors.Is(err, service.ErrNotAMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this group chat")
		default:
			log.Error().Err(err).Msg("list group messages")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *GroupHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return
	}

	if err := h.groupService.MarkRead(r.Context(), groupID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Group chat not found")
		case errors.Is(err, service.ErrNotAMember):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this group chat")
		default:
			log.Error().Err(err).Msg("mark group read")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessageContent(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.groupService.EditMessage(r.Context(), userID, messageID, input.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGroupMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotGroupMessageSender):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only edit your own messages")
		default:
			log.Error().Err(err).Msg("edit group message")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *GroupHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.groupService.DeleteMessage(r.Context(), userID, messageID); err != nil {
		switch {
		case errors.Is(err, service.ErrGroupMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotGroupMessageSender):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only delete your own messages")
		default:
			log.Error().Err(err).Msg("delete group message")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
