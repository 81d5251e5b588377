package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/campuskeep/lostfound/internal/http/response"
	"github.com/campuskeep/lostfound/internal/service"
	"github.com/campuskeep/lostfound/internal/uploads"
	"github.com/campuskeep/lostfound/pkg/config"
)

type Handlers struct {
	authService service.AuthService
	itemService service.ItemService
	photoStore  *uploads.Store
	cfg         *config.Config
}

func New(
	authService service.AuthService,
	itemService service.ItemService,
	photoStore *uploads.Store,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		authService: authService,
		itemService: itemService,
		photoStore:  photoStore,
		cfg:         cfg,
	}
}

// writeServiceError maps engine errors onto the HTTP error envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	if ve, ok := domain.IsValidationError(err); ok {
		response.WriteFieldError(w, http.StatusBadRequest, ve.Message, response.CodeInvalidInput, ve.Field)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Not found")
	case errors.Is(err, domain.ErrInvalidCode):
		response.WriteError(w, http.StatusBadRequest, "Invalid code. Please try again.", response.CodeInvalidCode)
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "You do not own this item")
	default:
		response.InternalError(w, "Something went wrong. Please try again.")
	}
}

func parseLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return fallback
}
