package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albumforge/albumforge/internal/metrics"
)

// Service is the quota gate: it decides whether one more AI call may
// proceed for a given client key and records its consumption. It also
// carries the administrative lifecycle of keys.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) today() string {
	return s.now().UTC().Format(DateFormat)
}

// CheckAndConsume permits one call iff the key exists and has budget
// left in the current UTC day, consuming one unit as part of the same
// atomic operation.
func (s *Service) CheckAndConsume(ctx context.Context, clientKey string) (*Consumption, error) {
	key, err := s.repo.CheckAndConsume(ctx, clientKey, s.today())
	if err != nil {
		var exceeded *QuotaExceededError
		switch {
		case errors.Is(err, ErrKeyNotFound):
			metrics.QuotaChecksTotal.WithLabelValues(metrics.QuotaResultInvalidKey).Inc()
		case errors.As(err, &exceeded):
			metrics.QuotaChecksTotal.WithLabelValues(metrics.QuotaResultDenied).Inc()
			slog.Info("quota denied", "key", clientKey, "limit", exceeded.Limit, "usage", exceeded.Usage)
		}
		return nil, err
	}

	metrics.QuotaChecksTotal.WithLabelValues(metrics.QuotaResultAllowed).Inc()
	return &Consumption{
		Tier:      key.Tier,
		Limit:     key.DailyLimit,
		Usage:     key.UsageCount,
		Remaining: key.DailyLimit - key.UsageCount,
	}, nil
}

// Verify reports a key's standing without consuming quota. The lazy
// daily reset IS persisted here, so the stored row always matches what
// the caller was told; repeated Verify calls are otherwise free of
// side effects.
func (s *Service) Verify(ctx context.Context, clientKey string) (*Status, error) {
	if err := s.repo.ResetIfStale(ctx, clientKey, s.today()); err != nil {
		// A failed reset only risks reporting yesterday's usage; the
		// lookup below still decides validity.
		slog.Warn("quota: persisting lazy reset failed", "error", err)
	}

	key, err := s.repo.GetByClientKey(ctx, clientKey)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}

	usage := key.UsageCount
	if key.LastResetDate.UTC().Format(DateFormat) != s.today() {
		usage = 0
	}

	remaining := key.DailyLimit - usage
	if remaining < 0 {
		remaining = 0
	}

	return &Status{
		Tier:      key.Tier,
		Limit:     key.DailyLimit,
		Usage:     usage,
		Remaining: remaining,
	}, nil
}

// ListKeys returns every issued key, newest first.
func (s *Service) ListKeys(ctx context.Context) ([]Key, error) {
	return s.repo.List(ctx)
}

// CreateKey issues a new client key. Uniqueness is enforced by the
// store; a duplicate returns ErrDuplicateKey with the existing record
// untouched.
func (s *Service) CreateKey(ctx context.Context, clientKey, tier string, dailyLimit int) (*Key, error) {
	if tier == "" {
		tier = "basic"
	}
	if dailyLimit < 0 {
		return nil, fmt.Errorf("daily limit must be non-negative, got %d", dailyLimit)
	}
	return s.repo.Create(ctx, clientKey, tier, dailyLimit)
}

// UpdateKey changes a key's tier and daily limit. The client key
// itself is immutable after creation.
func (s *Service) UpdateKey(ctx context.Context, id uuid.UUID, tier string, dailyLimit int) error {
	if dailyLimit < 0 {
		return fmt.Errorf("daily limit must be non-negative, got %d", dailyLimit)
	}
	return s.repo.Update(ctx, id, tier, dailyLimit)
}

// DeleteKey revokes a key. Terminal: there is no soft delete.
func (s *Service) DeleteKey(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
