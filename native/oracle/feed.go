package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrStalePrice indicates the feed's last update is older than the
	// configured heartbeat. Consumers must treat the price as unavailable
	// rather than fall back to a default.
	ErrStalePrice = errors.New("oracle: stale price")
	// ErrInvalidPrice indicates the feed reported a nil, zero, or negative
	// answer.
	ErrInvalidPrice = errors.New("oracle: invalid price")
)

// DefaultDecimals is the native precision reported by production feeds.
const DefaultDecimals uint8 = 8

// RoundData mirrors the shape of an aggregator round: the answer plus the
// bookkeeping timestamps used to judge freshness.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (r RoundData) Clone() RoundData {
	clone := r
	if r.Answer != nil {
		clone.Answer = new(big.Int).Set(r.Answer)
	}
	return clone
}

// Feed resolves the latest price round for a single asset pair.
type Feed interface {
	LatestRoundData() (RoundData, error)
	Decimals() uint8
}

// ManualFeed is an in-memory feed implementation used for tests and manual
// overrides during incident response.
type ManualFeed struct {
	mu       sync.RWMutex
	decimals uint8
	round    RoundData
	set      bool
}

// NewManualFeed constructs a feed reporting prices at the given decimal
// precision. Zero decimals falls back to the production default.
func NewManualFeed(decimals uint8) *ManualFeed {
	if decimals == 0 {
		decimals = DefaultDecimals
	}
	return &ManualFeed{decimals: decimals}
}

// Set records a new round with the provided answer and update time.
func (m *ManualFeed) Set(answer *big.Int, updatedAt time.Time) {
	if m == nil || answer == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round = RoundData{
		RoundID:         m.round.RoundID + 1,
		Answer:          new(big.Int).Set(answer),
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: m.round.RoundID + 1,
	}
	m.set = true
}

// SetDecimal parses a base-10 integer string and records it as the latest
// answer.
func (m *ManualFeed) SetDecimal(answer string, updatedAt time.Time) error {
	if m == nil {
		return fmt.Errorf("oracle: manual feed not configured")
	}
	parsed, ok := new(big.Int).SetString(answer, 10)
	if !ok {
		return fmt.Errorf("oracle: invalid answer %q", answer)
	}
	m.Set(parsed, updatedAt)
	return nil
}

func (m *ManualFeed) LatestRoundData() (RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return RoundData{}, fmt.Errorf("oracle: no round recorded")
	}
	return m.round.Clone(), nil
}

func (m *ManualFeed) Decimals() uint8 { return m.decimals }

// CheckedFeed wraps a Feed with heartbeat enforcement. Every read validates
// the answer sign and the age of the round against the maximum allowed
// staleness, failing closed when either check trips.
type CheckedFeed struct {
	feed   Feed
	maxAge time.Duration
	clock  func() time.Time
}

// NewCheckedFeed wraps the feed with the supplied heartbeat. A non-positive
// maxAge disables the staleness check (not recommended outside tests).
func NewCheckedFeed(feed Feed, maxAge time.Duration) *CheckedFeed {
	return &CheckedFeed{feed: feed, maxAge: maxAge, clock: time.Now}
}

// SetClock overrides the time source for deterministic testing.
func (c *CheckedFeed) SetClock(clock func() time.Time) {
	if c == nil || clock == nil {
		return
	}
	c.clock = clock
}

func (c *CheckedFeed) Decimals() uint8 {
	if c == nil || c.feed == nil {
		return DefaultDecimals
	}
	return c.feed.Decimals()
}

func (c *CheckedFeed) LatestRoundData() (RoundData, error) {
	if c == nil || c.feed == nil {
		return RoundData{}, fmt.Errorf("oracle: checked feed not configured")
	}
	round, err := c.feed.LatestRoundData()
	if err != nil {
		return RoundData{}, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return RoundData{}, ErrInvalidPrice
	}
	if c.maxAge > 0 {
		cutoff := c.clock().Add(-c.maxAge)
		if round.UpdatedAt.Before(cutoff) {
			return RoundData{}, ErrStalePrice
		}
	}
	return round, nil
}
