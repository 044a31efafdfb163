package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albumforge/albumforge/internal/audit"
	"github.com/albumforge/albumforge/internal/quota"
)

type fakeKeyAdmin struct {
	keys      []quota.Key
	createErr error
	updateErr error
	deleteErr error

	created *quota.Key
	updated uuid.UUID
	deleted uuid.UUID
}

func (f *fakeKeyAdmin) ListKeys(_ context.Context) ([]quota.Key, error) {
	return f.keys, nil
}

func (f *fakeKeyAdmin) CreateKey(_ context.Context, clientKey, tier string, dailyLimit int) (*quota.Key, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &quota.Key{ID: uuid.New(), ClientKey: clientKey, Tier: tier, DailyLimit: dailyLimit}
	return f.created, nil
}

func (f *fakeKeyAdmin) UpdateKey(_ context.Context, id uuid.UUID, _ string, _ int) error {
	f.updated = id
	return f.updateErr
}

func (f *fakeKeyAdmin) DeleteKey(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.deleteErr
}

type fakeAuditLister struct {
	entries []audit.Entry
	total   int64
	params  audit.ListParams
}

func (f *fakeAuditLister) List(_ context.Context, params audit.ListParams) ([]audit.Entry, int64, error) {
	f.params = params
	return f.entries, f.total, nil
}

func newTestHandler(keys *fakeKeyAdmin) *Handler {
	return NewHandler(keys, &fakeAuditLister{}, func() (uint, error) { return 1, nil }, nil)
}

func TestListKeys(t *testing.T) {
	keys := &fakeKeyAdmin{keys: []quota.Key{
		{ID: uuid.New(), ClientKey: "ak_live_one", Tier: "basic", DailyLimit: 10, UsageCount: 3},
		{ID: uuid.New(), ClientKey: "ak_live_two", Tier: "pro", DailyLimit: 100},
	}}

	rec := httptest.NewRecorder()
	newTestHandler(keys).ListKeys(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]quota.Key
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["users"], 2)
	assert.Equal(t, "ak_live_one", resp["users"][0].ClientKey)
}

func TestListKeys_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeKeyAdmin{}).ListKeys(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
}

func TestCreateKey(t *testing.T) {
	keys := &fakeKeyAdmin{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys",
		strings.NewReader(`{"key":"ak_live_new","tier":"pro","limit":50}`))
	rec := httptest.NewRecorder()

	newTestHandler(keys).CreateKey(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.NotNil(t, keys.created)
	assert.Equal(t, "ak_live_new", keys.created.ClientKey)
	assert.Equal(t, 50, keys.created.DailyLimit)
}

func TestCreateKey_Duplicate(t *testing.T) {
	keys := &fakeKeyAdmin{createErr: quota.ErrDuplicateKey}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys",
		strings.NewReader(`{"key":"ak_live_dup","limit":10}`))
	rec := httptest.NewRecorder()

	newTestHandler(keys).CreateKey(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"key already exists"}`, rec.Body.String())
}

func TestCreateKey_MissingKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys",
		strings.NewReader(`{"tier":"basic","limit":10}`))
	rec := httptest.NewRecorder()

	newTestHandler(&fakeKeyAdmin{}).CreateKey(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateKey_NegativeLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys",
		strings.NewReader(`{"key":"ak_live_neg","limit":-1}`))
	rec := httptest.NewRecorder()

	newTestHandler(&fakeKeyAdmin{}).CreateKey(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateKey(t *testing.T) {
	keys := &fakeKeyAdmin{}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/keys",
		strings.NewReader(`{"id":"`+id.String()+`","tier":"pro","limit":200}`))
	rec := httptest.NewRecorder()

	newTestHandler(keys).UpdateKey(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, id, keys.updated)
}

func TestUpdateKey_MissingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/keys",
		strings.NewReader(`{"tier":"pro","limit":200}`))
	rec := httptest.NewRecorder()

	newTestHandler(&fakeKeyAdmin{}).UpdateKey(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing id"}`, rec.Body.String())
}

func TestUpdateKey_UnknownID(t *testing.T) {
	keys := &fakeKeyAdmin{updateErr: quota.ErrKeyNotFound}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/keys",
		strings.NewReader(`{"id":"`+uuid.NewString()+`","tier":"pro","limit":5}`))
	rec := httptest.NewRecorder()

	newTestHandler(keys).UpdateKey(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteKey(t *testing.T) {
	keys := &fakeKeyAdmin{}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys?id="+id.String(), nil)
	rec := httptest.NewRecorder()

	newTestHandler(keys).DeleteKey(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, id, keys.deleted)
}

func TestDeleteKey_MissingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys", nil)
	rec := httptest.NewRecorder()

	newTestHandler(&fakeKeyAdmin{}).DeleteKey(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing id"}`, rec.Body.String())
}

func TestDeleteKey_InvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys?id=not-a-uuid", nil)
	rec := httptest.NewRecorder()

	newTestHandler(&fakeKeyAdmin{}).DeleteKey(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetup(t *testing.T) {
	var ran bool
	h := NewHandler(&fakeKeyAdmin{}, &fakeAuditLister{}, func() (uint, error) {
		ran = true
		return 2, nil
	}, nil)

	rec := httptest.NewRecorder()
	h.Setup(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/setup", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ran)
	assert.JSONEq(t, `{"success":true,"version":2}`, rec.Body.String())
}

func TestSetup_MigrationFailure(t *testing.T) {
	h := NewHandler(&fakeKeyAdmin{}, &fakeAuditLister{}, func() (uint, error) {
		return 0, errors.New("dirty schema")
	}, nil)

	rec := httptest.NewRecorder()
	h.Setup(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/setup", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListAudit(t *testing.T) {
	lister := &fakeAuditLister{
		entries: []audit.Entry{{ID: uuid.New(), EventType: "key_created", Severity: "info", CreatedAt: time.Now().UTC()}},
		total:   41,
	}
	h := NewHandler(&fakeKeyAdmin{}, lister, func() (uint, error) { return 1, nil }, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?event_type=key_created&page=3&page_size=10", nil)
	rec := httptest.NewRecorder()
	h.ListAudit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key_created", lister.params.EventType)
	assert.Equal(t, 3, lister.params.Page)
	assert.Equal(t, 10, lister.params.PageSize)

	var resp auditListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(41), resp.Total)
	assert.Len(t, resp.Events, 1)
}
