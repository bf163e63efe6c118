// Package cache keeps a short-lived Redis copy of coupon definitions in front
// of the Postgres repository. Only reads go through the cache; redemptions are
// always decided under a row lock in Postgres.
//
// Every code has a version counter next to its entry. Invalidate bumps it, and a
// load only writes its result back if the version it saw before reading the
// database is still current, so a slow load cannot resurrect a row that was
// changed and invalidated while it was in flight.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
)

// versionTTL bounds how long an idle version counter is kept. It only has to
// outlive a single load.
const versionTTL = 24 * time.Hour

// fillScript stores ARGV[2] under KEYS[1] for ARGV[3] ms if the version in
// KEYS[2] still equals ARGV[1]. A missing version counts as "0".
const fillScript = `
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

// invalidateScript bumps the version in KEYS[2] and drops the entry in KEYS[1].
const invalidateScript = `
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return redis.call('DEL', KEYS[1])
`

// RedisClient is the subset of *redis.Client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// CouponRepository wraps a coupon repository with a read-through cache on GetByCode.
// All other methods go straight to the wrapped repository.
type CouponRepository struct {
	service.CouponRepositoryInterface

	rdb   RedisClient
	ttl   time.Duration
	group singleflight.Group
}

// NewCouponRepository creates a cached view over next.
func NewCouponRepository(next service.CouponRepositoryInterface, rdb RedisClient, ttl time.Duration) *CouponRepository {
	return &CouponRepository{
		CouponRepositoryInterface: next,
		rdb:                       rdb,
		ttl:                       ttl,
	}
}

// cachedCoupon is the Redis encoding of a coupon.
type cachedCoupon struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	Discount       int       `json:"discount"`
	ExpiresAt      time.Time `json:"expires_at"`
	MaxRedemptions int       `json:"max_redemptions"`
	TimesRedeemed  int       `json:"times_redeemed"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Keys share a hash tag so both scripts stay on one cluster slot.
func key(code string) string {
	return "coupon:{" + code + "}"
}

func versionKey(code string) string {
	return "coupon-version:{" + code + "}"
}

// GetByCode returns the cached coupon or loads it from the wrapped repository.
// Concurrent misses for the same code share one load. Redis failures degrade to
// a direct read. Missing coupons are not cached. The shared load is detached from
// the first caller's cancellation.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	raw, err := r.rdb.Get(ctx, key(code)).Bytes()
	switch {
	case err == nil:
		var cc cachedCoupon
		if jsonErr := json.Unmarshal(raw, &cc); jsonErr == nil {
			return cc.toModel(), nil
		}
		log.Warn().Str("coupon_code", code).Msg("discarding undecodable cached coupon")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("coupon_code", code).Msg("coupon cache unavailable, reading from database")
		return r.CouponRepositoryInterface.GetByCode(ctx, code)
	}

	v, err, _ := r.group.Do(code, func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)

		// The version must be read before the database.
		ver, verErr := r.version(loadCtx, code)
		coupon, err := r.CouponRepositoryInterface.GetByCode(loadCtx, code)
		if err != nil || coupon == nil {
			return coupon, err
		}
		if verErr != nil {
			log.Warn().Err(verErr).Str("coupon_code", code).Msg("coupon cache version unavailable, not caching")
			return coupon, nil
		}
		r.store(loadCtx, coupon, ver)
		return coupon, nil
	})
	if err != nil {
		return nil, err
	}

	coupon, _ := v.(*model.Coupon)
	if coupon == nil {
		return nil, nil
	}
	cp := *coupon
	return &cp, nil
}

// Invalidate drops the cached copy of a coupon and fences off loads that
// started before the call. Later readers start a fresh load.
func (r *CouponRepository) Invalidate(ctx context.Context, code string) error {
	r.group.Forget(code)
	err := r.rdb.Eval(ctx, invalidateScript, []string{key(code), versionKey(code)}, versionTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("invalidate coupon %s: %w", code, err)
	}
	return nil
}

func (r *CouponRepository) version(ctx context.Context, code string) (string, error) {
	ver, err := r.rdb.Get(ctx, versionKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return ver, err
}

// store writes c to the cache unless the code was invalidated after ver was read.
func (r *CouponRepository) store(ctx context.Context, c *model.Coupon, ver string) {
	raw, err := json.Marshal(fromModel(c))
	if err != nil {
		log.Warn().Err(err).Str("coupon_code", c.Code).Msg("failed to encode coupon for cache")
		return
	}
	stored, err := r.rdb.Eval(ctx, fillScript, []string{key(c.Code), versionKey(c.Code)}, ver, raw, r.ttl.Milliseconds()).Int()
	if err != nil {
		log.Warn().Err(err).Str("coupon_code", c.Code).Msg("failed to cache coupon")
		return
	}
	if stored == 0 {
		log.Debug().Str("coupon_code", c.Code).Msg("coupon changed during load, not caching")
	}
}

func fromModel(c *model.Coupon) cachedCoupon {
	return cachedCoupon{
		ID:             c.ID,
		Code:           c.Code,
		Discount:       c.Discount,
		ExpiresAt:      c.ExpiresAt,
		MaxRedemptions: c.MaxRedemptions,
		TimesRedeemed:  c.TimesRedeemed,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
	}
}

func (cc cachedCoupon) toModel() *model.Coupon {
	return &model.Coupon{
		ID:             cc.ID,
		Code:           cc.Code,
		Discount:       cc.Discount,
		ExpiresAt:      cc.ExpiresAt,
		MaxRedemptions: cc.MaxRedemptions,
		TimesRedeemed:  cc.TimesRedeemed,
		Active:         cc.Active,
		CreatedAt:      cc.CreatedAt,
	}
}
