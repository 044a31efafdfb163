package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key matches the users table schema. A row is issued out of band by an
// administrator; the editor presents ClientKey as a bearer credential.
type Key struct {
	ID            uuid.UUID `json:"id"`
	ClientKey     string    `json:"client_api_key"`
	Tier          string    `json:"tier"`
	DailyLimit    int       `json:"daily_limit"`
	UsageCount    int       `json:"usage_count"`
	LastResetDate time.Time `json:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// Status reports a key's standing without consuming quota.
type Status struct {
	Tier      string
	Limit     int
	Usage     int
	Remaining int
}

// Consumption is the result of a successful CheckAndConsume. Usage and
// Remaining reflect the just-applied increment.
type Consumption struct {
	Tier      string
	Limit     int
	Usage     int
	Remaining int
}

var (
	ErrKeyNotFound  = errors.New("client key not found")
	ErrDuplicateKey = errors.New("client key already exists")
)

// QuotaExceededError carries the limit and current usage for the 429
// response. The message text is part of the editor-facing contract.
type QuotaExceededError struct {
	Limit int
	Usage int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("Daily limit of %d reached. Please wait until tomorrow.", e.Limit)
}

// DateFormat is the UTC calendar-day granularity of the quota window.
const DateFormat = "2006-01-02"
