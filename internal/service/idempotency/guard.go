package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

const (
	DefaultLease     = 30 * time.Second
	DefaultRetention = 24 * time.Hour
)

// Outcome is the result of CheckAndReserve. When Duplicate is set the key was
// already used and BookingID names the booking it produced.
type Outcome struct {
	Duplicate bool
	BookingID uuid.UUID
}

type Config struct {
	// Lease bounds how long a PROCESSING key blocks retries of the same request.
	Lease     time.Duration
	Retention time.Duration
}

type completed struct {
	bookingID   uuid.UUID
	requestHash string
}

// Guard collapses retried booking requests that carry the same client key.
type Guard struct {
	repo  repository.IdempotencyRepository
	cache *gocache.Cache
	lease time.Duration
	now   func() time.Time
}

func NewGuard(repo repository.IdempotencyRepository, cfg Config) *Guard {
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Guard{
		repo:  repo,
		cache: gocache.New(cfg.Retention, cfg.Retention/2),
		lease: cfg.Lease,
		now:   time.Now,
	}
}

// Fingerprint hashes a request payload so a key reused for a different
// request can be told apart from a retry.
func Fingerprint(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CheckAndReserve claims key for the caller. It returns a Conflict error when
// another request holds an unexpired lease on the key.
func (g *Guard) CheckAndReserve(ctx context.Context, key, requestHash string) (Outcome, error) {
	if cached, ok := g.cache.Get(key); ok {
		entry := cached.(completed)
		if entry.requestHash != requestHash {
			return Outcome{}, errMismatch()
		}
		return Outcome{Duplicate: true, BookingID: entry.bookingID}, nil
	}

	now := g.now().UTC()
	inserted, err := g.repo.Insert(ctx, &model.IdempotencyKey{
		Key:         key,
		RequestHash: requestHash,
		Status:      model.IdempotencyStatusProcessing,
		LockedUntil: now.Add(g.lease),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if inserted {
		return Outcome{}, nil
	}

	existing, err := g.repo.Get(ctx, key)
	if errors.IsNotFound(err) {
		// released by its owner between our insert and read
		return Outcome{}, errors.NewConflict("request with this idempotency key is still processing", nil)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load idempotency key: %w", err)
	}
	if existing.RequestHash != requestHash {
		return Outcome{}, errMismatch()
	}

	if existing.Status == model.IdempotencyStatusCompleted && existing.BookingID != nil {
		g.Remember(key, requestHash, *existing.BookingID)
		return Outcome{Duplicate: true, BookingID: *existing.BookingID}, nil
	}

	if existing.LockedUntil.Before(now) {
		taken, err := g.repo.TakeOver(ctx, key, now, now.Add(g.lease))
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to take over idempotency key: %w", err)
		}
		if taken {
			return Outcome{}, nil
		}
	}
	return Outcome{}, errors.NewConflict("request with this idempotency key is still processing", nil)
}

// Complete records the booking produced for key. Pass the repository of the
// transaction that created the booking.
func (g *Guard) Complete(ctx context.Context, repo repository.IdempotencyRepository, key string, bookingID uuid.UUID) error {
	if err := repo.Complete(ctx, key, bookingID); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Release frees a key whose request failed so the client can retry it.
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.repo.Release(ctx, key)
}

// Remember caches a completed key for the retention window.
func (g *Guard) Remember(key, requestHash string, bookingID uuid.UUID) {
	g.cache.SetDefault(key, completed{bookingID: bookingID, requestHash: requestHash})
}

func errMismatch() error {
	return errors.NewInvalidArgument("idempotency key was already used for a different request", nil)
}
