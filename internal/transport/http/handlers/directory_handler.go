package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creatorsgardenofficial/garden-messaging/internal/service"
	"github.com/creatorsgardenofficial/garden-messaging/pkg/validator"
)

type DirectoryHandler struct {
	directory *service.DirectoryService
}

func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	user, err := h.directory.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Error().Err(err).Msg("get user")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Search finds users by username prefix, for picking a recipient or
// group invitees.
func (h *DirectoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("username")
	if errs := validator.ValidateSearch(query); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}

	users, err := h.directory.Search(r.Context(), query, limit)
	if err != nil {
		log.Error().Err(err).Msg("search users")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, users)
}
