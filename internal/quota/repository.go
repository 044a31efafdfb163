package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// CheckAndConsume atomically applies the lazy daily reset, the limit
	// check, and the increment for one call. today is a UTC date in
	// YYYY-MM-DD form. Returns the row as of after the increment, or
	// ErrKeyNotFound / *QuotaExceededError.
	CheckAndConsume(ctx context.Context, clientKey, today string) (*Key, error)

	// ResetIfStale zeroes the counter and advances the reset date when
	// the stored date is older than today. Idempotent.
	ResetIfStale(ctx context.Context, clientKey, today string) error

	GetByClientKey(ctx context.Context, clientKey string) (*Key, error)
	List(ctx context.Context) ([]Key, error)
	Create(ctx context.Context, clientKey, tier string, dailyLimit int) (*Key, error)
	Update(ctx context.Context, id uuid.UUID, tier string, dailyLimit int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const keyColumns = `id, client_api_key, tier, daily_limit, usage_count, last_reset_date, created_at`

// The reset, check, and increment run as one conditional UPDATE so that
// concurrent calls for the same key can never admit more than
// daily_limit calls in a day. The CASE in the WHERE clause evaluates
// usage as 0 when the stored date is stale, which also keeps a
// daily_limit of 0 airtight across a day boundary.
const checkAndConsumeSQL = `
	UPDATE users
	SET usage_count = CASE WHEN last_reset_date < $2::date THEN 1 ELSE usage_count + 1 END,
	    last_reset_date = $2::date
	WHERE client_api_key = $1
	  AND (CASE WHEN last_reset_date < $2::date THEN 0 ELSE usage_count END) < daily_limit
	RETURNING ` + keyColumns

func (r *postgresRepository) CheckAndConsume(ctx context.Context, clientKey, today string) (*Key, error) {
	key := &Key{}
	err := r.pool.QueryRow(ctx, checkAndConsumeSQL, clientKey, today).Scan(
		&key.ID, &key.ClientKey, &key.Tier, &key.DailyLimit,
		&key.UsageCount, &key.LastResetDate, &key.CreatedAt)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consuming quota: %w", err)
	}

	// The update matched nothing: either the key does not exist or the
	// day's quota is spent. A follow-up read tells the two apart.
	existing, err := r.GetByClientKey(ctx, clientKey)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrKeyNotFound
	}

	usage := existing.UsageCount
	if existing.LastResetDate.UTC().Format(DateFormat) != today {
		usage = 0
	}
	return nil, &QuotaExceededError{Limit: existing.DailyLimit, Usage: usage}
}

func (r *postgresRepository) ResetIfStale(ctx context.Context, clientKey, today string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET usage_count = 0, last_reset_date = $2::date
		 WHERE client_api_key = $1 AND last_reset_date < $2::date`,
		clientKey, today)
	if err != nil {
		return fmt.Errorf("resetting stale quota: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByClientKey(ctx context.Context, clientKey string) (*Key, error) {
	key := &Key{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM users WHERE client_api_key = $1`,
		clientKey,
	).Scan(&key.ID, &key.ClientKey, &key.Tier, &key.DailyLimit,
		&key.UsageCount, &key.LastResetDate, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying key: %w", err)
	}
	return key, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Key, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+keyColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		err := rows.Scan(&key.ID, &key.ClientKey, &key.Tier, &key.DailyLimit,
			&key.UsageCount, &key.LastResetDate, &key.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *postgresRepository) Create(ctx context.Context, clientKey, tier string, dailyLimit int) (*Key, error) {
	key := &Key{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, client_api_key, tier, daily_limit, usage_count)
		 VALUES ($1, $2, $3, $4, 0)
		 RETURNING `+keyColumns,
		uuid.New(), clientKey, tier, dailyLimit,
	).Scan(&key.ID, &key.ClientKey, &key.Tier, &key.DailyLimit,
		&key.UsageCount, &key.LastResetDate, &key.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("inserting key: %w", err)
	}
	return key, nil
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, tier string, dailyLimit int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET tier = $2, daily_limit = $3 WHERE id = $1`,
		id, tier, dailyLimit)
	if err != nil {
		return fmt.Errorf("updating key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}
