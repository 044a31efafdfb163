package generate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/albumforge/albumforge/internal/api"
	"github.com/albumforge/albumforge/internal/genai"
	"github.com/albumforge/albumforge/internal/quota"
)

// OverloadedMessage is shown to the editor when the provider sheds
// load; the editor retries on it.
const OverloadedMessage = "Server is currently overloaded (High Traffic). Please try again in a moment."

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type GenerateRequest struct {
	Prompt      string `json:"prompt" validate:"required"`
	ImageBase64 string `json:"imageBase64" validate:"required"`
	MimeType    string `json:"mimeType" validate:"required"`
	ClientKey   string `json:"clientKey"`
	Resolution  string `json:"resolution" validate:"omitempty,oneof=1K 2K 4K"`
}

type GenerateResponse struct {
	Data      string `json:"data"`
	MimeType  string `json:"mimeType"`
	Remaining int    `json:"remaining"`
}

// Generate performs one quota-gated image edit.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}

	if req.ClientKey == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if req.Resolution == "" {
		req.Resolution = "4K"
	}

	result, err := h.svc.Generate(r.Context(), req.ClientKey, req.Prompt, req.ImageBase64, req.MimeType, req.Resolution)
	if err != nil {
		h.writeError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, GenerateResponse{
		Data:      result.Data,
		MimeType:  result.MimeType,
		Remaining: result.Remaining,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var exceeded *quota.QuotaExceededError
	switch {
	case errors.Is(err, quota.ErrKeyNotFound):
		api.HandleError(w, api.ErrInvalidKey)
	case errors.As(err, &exceeded):
		api.HandleError(w, api.NewQuotaExceededError(exceeded.Error()))
	case errors.Is(err, genai.ErrOverloaded):
		api.HandleError(w, api.NewOverloadedError(OverloadedMessage))
	case errors.Is(err, genai.ErrNoImage):
		api.JSONErrorMessage(w, http.StatusInternalServerError, genai.ErrNoImage.Error())
	default:
		api.HandleError(w, api.ErrInternalServer)
	}
}
