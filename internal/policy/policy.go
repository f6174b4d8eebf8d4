package policy

import (
	"time"

	"github.com/aatumaykin/sessmaint/internal/store"
)

// Classification is the eviction verdict for one record.
type Classification int

const (
	// Keep means the record stays in the store.
	Keep Classification = iota
	// ExpireOld means the record exceeded the absolute age ceiling.
	ExpireOld
	// ExpireIdle means the record exceeded the inactivity ceiling.
	ExpireIdle
)

func (c Classification) String() string {
	switch c {
	case Keep:
		return "keep"
	case ExpireOld:
		return "expire-old"
	case ExpireIdle:
		return "expire-idle"
	default:
		return "unknown"
	}
}

// Config holds the eviction thresholds.
type Config struct {
	MaxSessionAge  time.Duration // absolute age ceiling
	MaxInactiveAge time.Duration // inactivity ceiling
}

// DefaultConfig returns the stock thresholds: seven days absolute,
// twenty-four hours idle.
func DefaultConfig() Config {
	return Config{
		MaxSessionAge:  7 * 24 * time.Hour,
		MaxInactiveAge: 24 * time.Hour,
	}
}

// Policy classifies records. Classification is pure; removal is the
// orchestrator's job.
type Policy struct {
	cfg Config
}

// New creates a policy with the given thresholds.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Classify decides a record's fate at the given instant. Age and inactivity
// are both measured from the same last-activity value; the age ceiling is
// checked first.
func (p *Policy) Classify(rec *store.Record, now time.Time) Classification {
	age := now.Sub(LastActivity(rec, now, p.cfg.MaxSessionAge))
	if age > p.cfg.MaxSessionAge {
		return ExpireOld
	}
	if age > p.cfg.MaxInactiveAge {
		return ExpireIdle
	}
	return Keep
}

// Age returns how long ago the record was last active.
func (p *Policy) Age(rec *store.Record, now time.Time) time.Duration {
	return now.Sub(LastActivity(rec, now, p.cfg.MaxSessionAge))
}
