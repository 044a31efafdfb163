package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/albumforge/albumforge/internal/api"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type VerifyRequest struct {
	ClientKey string `json:"clientKey"`
}

type VerifyResponse struct {
	Valid     bool   `json:"valid"`
	Tier      string `json:"tier"`
	Limit     int    `json:"limit"`
	Usage     int    `json:"usage"`
	Remaining int    `json:"remaining"`
}

type verifyError struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

// Verify lets the editor display remaining quota before enabling AI
// features. It never consumes a unit.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientKey == "" {
		api.JSON(w, http.StatusBadRequest, verifyError{Error: "Key required"})
		return
	}

	status, err := h.svc.Verify(r.Context(), req.ClientKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			api.JSON(w, http.StatusForbidden, verifyError{Error: "Invalid Key"})
			return
		}
		slog.Error("verifying client key", "error", err)
		api.JSON(w, http.StatusInternalServerError, verifyError{Error: "Server error"})
		return
	}

	api.JSON(w, http.StatusOK, VerifyResponse{
		Valid:     true,
		Tier:      status.Tier,
		Limit:     status.Limit,
		Usage:     status.Usage,
		Remaining: status.Remaining,
	})
}
