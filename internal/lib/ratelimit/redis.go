// Package ratelimit — распределённый ограничитель частоты на фиксированном окне в Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter считает события в окне window на ключ scope:subject.
type Limiter struct {
	client redis.UniversalClient
	prefix string
}

// New создаёт ограничитель. Пустой prefix заменяется значением по умолчанию.
func New(client redis.UniversalClient, prefix string) *Limiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "entitlements:rate_limit"
	}
	return &Limiter{client: client, prefix: p}
}

// Allow засчитывает событие и сообщает, укладывается ли оно в limit за окно window.
// Иначе возвращает, через сколько секунд окно сбросится.
// Ограничитель без клиента или с нулевыми параметрами пропускает всё.
func (l *Limiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error) {
	if l == nil || l.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return true, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)
	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit.Allow: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("ratelimit.Allow: unexpected response shape %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("ratelimit.Allow: unexpected count type %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return count <= int64(limit), retryAfter, nil
}
