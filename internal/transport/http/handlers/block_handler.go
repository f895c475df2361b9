package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creatorsgardenofficial/garden-messaging/internal/service"
	"github.com/creatorsgardenofficial/garden-messaging/internal/transport/http/middleware"
)

type BlockHandler struct {
	blockService *service.BlockService
}

func NewBlockHandler(blockService *service.BlockService) *BlockHandler {
	return &BlockHandler{blockService: blockService}
}

func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

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

	if err := h.blockService.Block(r.Context(), userID, input.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrCannotBlockSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_BLOCK_SELF", "Cannot block yourself")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Error().Err(err).Msg("block user")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	targetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	if err := h.blockService.Unblock(r.Context(), userID, targetID); err != nil {
		log.Error().Err(err).Msg("unblock user")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	blocked, err := h.blockService.ListBlocked(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list blocked users")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, blocked)
}
