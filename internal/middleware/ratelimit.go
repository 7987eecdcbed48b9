package middleware

import (
  "context"
  "fmt"
  "sync"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/redis/go-redis/v9"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/requestdata"
)

// Limiter answers whether one more request under key fits its budget.
type Limiter interface {
  Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit keys on the authenticated principal, falling back to the client
// IP. Limiter failures let the request through.
func RateLimit(limiter Limiter, scope string, log *logger.Logger) gin.HandlerFunc {
  rlLog := log.With("middleware", "RateLimit", "scope", scope)
  return func(c *gin.Context) {
    key := c.ClientIP()
    if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil && rd.UserID != "" {
      key = rd.UserID
    }
    key = scope + ":" + key
    ok, err := limiter.Allow(c.Request.Context(), key)
    if err != nil {
      rlLog.Warn("Rate limiter unavailable, allowing request", "error", err)
      c.Next()
      return
    }
    if !ok {
      abortWithError(c, apperrors.New(apperrors.KindRateLimited, apperrors.CodeRateLimited, "Too many requests"))
      return
    }
    c.Next()
  }
}

//----------------------------------------------------------------------------------------------------------------------
// Redis fixed window
//----------------------------------------------------------------------------------------------------------------------

// DefaultRedeemPerMinute replaces non-positive limits.
const DefaultRedeemPerMinute = 30

// EffectivePerMinute returns perMinute, or DefaultRedeemPerMinute when it is not positive.
func EffectivePerMinute(perMinute int) int {
  if perMinute <= 0 {
    return DefaultRedeemPerMinute
  }
  return perMinute
}

type RedisLimiter struct {
  client *redis.Client
  limit  int64
  window time.Duration
  now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
  perMinute = EffectivePerMinute(perMinute)
  return &RedisLimiter{client: client, limit: int64(perMinute), window: time.Minute, now: time.Now}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
  slot := rl.now().Unix() / int64(rl.window/time.Second)
  redisKey := fmt.Sprintf("ratelimit:%s:%d", key, slot)

  pipe := rl.client.TxPipeline()
  incr := pipe.Incr(ctx, redisKey)
  pipe.Expire(ctx, redisKey, rl.window)
  if _, err := pipe.Exec(ctx); err != nil {
    return false, err
  }
  return incr.Val() <= rl.limit, nil
}

//----------------------------------------------------------------------------------------------------------------------
// In-memory token bucket
//----------------------------------------------------------------------------------------------------------------------

// TokenBucket is a per-process limiter for single instance deployments.
type TokenBucket struct {
  capacity int
  rate     int
  mu       sync.Mutex
  state    map[string]*bucket
  now      func() time.Time
}

type bucket struct {
  tokens int
  last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
  perMinute = EffectivePerMinute(perMinute)
  if capacity <= 0 {
    capacity = perMinute
  }
  return &TokenBucket{
    capacity: capacity,
    rate:     perMinute,
    state:    make(map[string]*bucket),
    now:      time.Now,
  }
}

func (tb *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
  tb.mu.Lock()
  defer tb.mu.Unlock()
  now := tb.now()
  b, ok := tb.state[key]
  if !ok {
    tb.state[key] = &bucket{tokens: tb.capacity - 1, last: now}
    return true, nil
  }
  refill := int(now.Sub(b.last).Minutes() * float64(tb.rate))
  if refill > 0 {
    b.tokens += refill
    if b.tokens > tb.capacity {
      b.tokens = tb.capacity
    }
    b.last = now
  }
  if b.tokens <= 0 {
    return false, nil
  }
  b.tokens--
  return true, nil
}
