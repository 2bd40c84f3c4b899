package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrCounterUnavailable 计数器存储不可用
var ErrCounterUnavailable = errors.New("counter store unavailable")

// 固定窗口计数脚本：INCR 后在首次计数时设置过期，返回当前计数与剩余 TTL。
// 放在 Redis 里而不是进程内存，多实例部署时计数不丢。
var counterScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// IncrWindow 自增固定窗口计数，返回窗口内计数与剩余秒数
func IncrWindow(ctx context.Context, key string, windowSeconds int) (int64, int64, error) {
	if !Enabled() {
		return 0, 0, ErrCounterUnavailable
	}
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	result, err := counterScript.Run(ctx, redisClient, []string{buildKey(key)}, windowSeconds).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, ErrCounterUnavailable
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, ErrCounterUnavailable
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
