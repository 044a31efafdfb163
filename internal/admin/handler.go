package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/albumforge/albumforge/internal/api"
	"github.com/albumforge/albumforge/internal/audit"
	"github.com/albumforge/albumforge/internal/nats"
	"github.com/albumforge/albumforge/internal/quota"
)

// KeyAdmin is the slice of the quota service the admin surface uses.
type KeyAdmin interface {
	ListKeys(ctx context.Context) ([]quota.Key, error)
	CreateKey(ctx context.Context, clientKey, tier string, dailyLimit int) (*quota.Key, error)
	UpdateKey(ctx context.Context, id uuid.UUID, tier string, dailyLimit int) error
	DeleteKey(ctx context.Context, id uuid.UUID) error
}

// AuditLister reads back the persisted audit trail.
type AuditLister interface {
	List(ctx context.Context, params audit.ListParams) ([]audit.Entry, int64, error)
}

// Migrator applies pending schema migrations and reports the resulting
// version. Wired to the database package at startup.
type Migrator func() (uint, error)

type Handler struct {
	keys     KeyAdmin
	auditLog AuditLister
	migrate  Migrator
	events   *nats.Publisher
	validate *validator.Validate
}

func NewHandler(keys KeyAdmin, auditLog AuditLister, migrate Migrator, events *nats.Publisher) *Handler {
	return &Handler{
		keys:     keys,
		auditLog: auditLog,
		migrate:  migrate,
		events:   events,
		validate: validator.New(),
	}
}

// ListKeys returns every issued key, usage counters included.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		slog.Error("listing keys", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if keys == nil {
		keys = []quota.Key{}
	}
	api.JSON(w, http.StatusOK, map[string][]quota.Key{"users": keys})
}

type createKeyRequest struct {
	Key   string `json:"key" validate:"required"`
	Tier  string `json:"tier"`
	Limit int    `json:"limit" validate:"gte=0"`
}

func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	key, err := h.keys.CreateKey(r.Context(), req.Key, req.Tier, req.Limit)
	if err != nil {
		if errors.Is(err, quota.ErrDuplicateKey) {
			api.HandleError(w, api.NewConflictError("key already exists"))
			return
		}
		slog.Error("creating key", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.events.PublishAuditEvent(r.Context(), nats.NewKeyCreatedEvent(key.ID.String(), key.ClientKey, key.DailyLimit))
	api.JSONSuccess(w, http.StatusCreated)
}

type updateKeyRequest struct {
	ID    string `json:"id"`
	Tier  string `json:"tier" validate:"required"`
	Limit int    `json:"limit" validate:"gte=0"`
}

func (h *Handler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if req.ID == "" {
		api.HandleError(w, api.NewBadRequestError("Missing id"))
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid id"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.keys.UpdateKey(r.Context(), id, req.Tier, req.Limit); err != nil {
		if errors.Is(err, quota.ErrKeyNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("updating key", "error", err, "id", id)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.events.PublishAuditEvent(r.Context(), nats.NewKeyUpdatedEvent(id.String(), req.Tier, req.Limit))
	api.JSONSuccess(w, http.StatusOK)
}

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		api.HandleError(w, api.NewBadRequestError("Missing id"))
		return
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid id"))
		return
	}

	if err := h.keys.DeleteKey(r.Context(), id); err != nil {
		slog.Error("deleting key", "error", err, "id", id)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.events.PublishAuditEvent(r.Context(), nats.NewKeyDeletedEvent(id.String()))
	api.JSONSuccess(w, http.StatusOK)
}

// Setup applies pending schema migrations. Idempotent: an up-to-date
// schema is a success.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	version, err := h.migrate()
	if err != nil {
		slog.Error("running schema setup", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.events.PublishAuditEvent(r.Context(), nats.NewSchemaSetupEvent(version))
	api.JSON(w, http.StatusOK, map[string]any{"success": true, "version": version})
}

type auditListResponse struct {
	Events   []audit.Entry `json:"events"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListAudit returns the persisted audit trail, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	params := audit.DefaultListParams()
	params.EventType = r.URL.Query().Get("event_type")
	params.Severity = r.URL.Query().Get("severity")
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		params.Page = page
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && size > 0 {
		params.PageSize = size
	}

	entries, total, err := h.auditLog.List(r.Context(), params)
	if err != nil {
		slog.Error("listing audit entries", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	api.JSON(w, http.StatusOK, auditListResponse{
		Events:   entries,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}
