package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

const (
	defaultKeyPrefix = "checkout"
	// Sessions outlive their ExpiresAt so an expired session can still be observed and
	// purged; the key TTL is only a backstop.
	defaultRetention = 24 * time.Hour
)

// Options configures the session repository.
type Options struct {
	KeyPrefix string
	Retention time.Duration
}

// SessionRepository keeps checkout sessions in Redis. Each session is a JSON value; the
// customer index, the submission guard and the expiry index are separate keys.
type SessionRepository struct {
	client    goredis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ repositories.CheckoutSessionRepository = (*SessionRepository)(nil)

// NewSessionRepository wraps an existing client.
func NewSessionRepository(client goredis.UniversalClient, opts Options) (*SessionRepository, error) {
	if client == nil {
		return nil, errors.New("redis session repository: client is required")
	}
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &SessionRepository{
		client:    client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}, nil
}

// Get loads the session. A missing key is reported as not found.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.CheckoutSession{}, repositories.NotFound("checkout_sessions.get", "session %q", sessionID)
		}
		return domain.CheckoutSession{}, unavailable("checkout_sessions.get", err)
	}
	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.CheckoutSession{}, repositories.NewStoreError("checkout_sessions.decode", repositories.ErrorKindUnknown, err)
	}
	return record.toDomain(), nil
}

// Save writes the session, refreshes the customer index and records its expiry.
func (r *SessionRepository) Save(ctx context.Context, session domain.CheckoutSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return repositories.NewStoreError("checkout_sessions.save", repositories.ErrorKindConflict, errors.New("session id is required"))
	}
	payload, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return repositories.NewStoreError("checkout_sessions.encode", repositories.ErrorKindUnknown, err)
	}
	ttl := r.keyTTL(session.ExpiresAt)

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), payload, ttl)
		if session.CustomerID != "" {
			if session.State.Terminal() {
				// Only drop the index when it still points at this session.
				pipe.Eval(ctx, releaseActiveScript, []string{r.activeKey(session.CustomerID)}, session.ID)
			} else {
				pipe.Set(ctx, r.activeKey(session.CustomerID), session.ID, ttl)
			}
		}
		pipe.ZAdd(ctx, r.expiryKey(), &goredis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: session.ID,
		})
		return nil
	})
	if err != nil {
		return unavailable("checkout_sessions.save", err)
	}
	return nil
}

// Delete removes the session with its guard and index entries.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	session, err := r.Get(ctx, sessionID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	return r.remove(ctx, session.ID, session.CustomerID)
}

// ActiveForCustomer returns the id of the customer's open session.
func (r *SessionRepository) ActiveForCustomer(ctx context.Context, customerID string) (string, error) {
	id, err := r.client.Get(ctx, r.activeKey(customerID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", repositories.NotFound("checkout_sessions.active", "customer %q has no session", customerID)
		}
		return "", unavailable("checkout_sessions.active", err)
	}
	return id, nil
}

// AcquireSubmission sets the guard key only when it is absent.
func (r *SessionRepository) AcquireSubmission(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.guardKey(sessionID), r.now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, unavailable("checkout_sessions.acquire", err)
	}
	return ok, nil
}

// ReleaseSubmission clears the guard. Releasing a free guard is a no-op.
func (r *SessionRepository) ReleaseSubmission(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.guardKey(sessionID)).Err(); err != nil {
		return unavailable("checkout_sessions.release", err)
	}
	return nil
}

// PurgeExpired deletes every session whose ExpiresAt is at or before now, skipping sessions
// with a submission in flight.
func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, unavailable("checkout_sessions.purge", err)
	}

	purged := 0
	for _, id := range ids {
		held, err := r.client.Exists(ctx, r.guardKey(id)).Result()
		if err != nil {
			return purged, unavailable("checkout_sessions.purge", err)
		}
		if held > 0 {
			continue
		}
		session, err := r.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
				return purged, err
			}
			// The key already expired; only the index entry is left.
			if err := r.client.ZRem(ctx, r.expiryKey(), id).Err(); err != nil {
				return purged, unavailable("checkout_sessions.purge", err)
			}
			continue
		}
		if session.ExpiresAt.After(now) {
			continue
		}
		if err := r.remove(ctx, session.ID, session.CustomerID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (r *SessionRepository) remove(ctx context.Context, sessionID, customerID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(sessionID), r.guardKey(sessionID))
		pipe.ZRem(ctx, r.expiryKey(), sessionID)
		if customerID != "" {
			pipe.Eval(ctx, releaseActiveScript, []string{r.activeKey(customerID)}, sessionID)
		}
		return nil
	})
	if err != nil {
		return unavailable("checkout_sessions.delete", err)
	}
	return nil
}

func (r *SessionRepository) keyTTL(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now()) + r.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *SessionRepository) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *SessionRepository) guardKey(id string) string {
	return fmt.Sprintf("%s:session:%s:submit", r.prefix, id)
}

func (r *SessionRepository) activeKey(customerID string) string {
	return fmt.Sprintf("%s:customer:%s:active", r.prefix, customerID)
}

func (r *SessionRepository) expiryKey() string {
	return r.prefix + ":sessions:expiry"
}

const releaseActiveScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

func unavailable(op string, err error) error {
	return repositories.NewStoreError(op, repositories.ErrorKindUnavailable, err)
}
