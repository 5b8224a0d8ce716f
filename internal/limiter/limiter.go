package limiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Guard bounds duplicate work: at most one in-flight compose job per output
// path in this process, plus a redis-backed cooldown for inputs that keep
// failing, with exponential backoff per attempt.
type Guard struct {
	rdb         *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
	mu          sync.Mutex
	sem         map[string]chan struct{}
}

type Options struct {
	RedisURL    string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Guard, error) {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Guard{rdb: c, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff, sem: map[string]chan struct{}{}}, nil
}

func (g *Guard) key(input string) string {
	return fmt.Sprintf("cooldown:%s", strings.ToLower(input))
}

// InCooldown returns true while the cooldown for input is active.
func (g *Guard) InCooldown(ctx context.Context, input string) bool {
	ts, err := g.rdb.Get(ctx, g.key(input)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// Cooldown sets/extends the cooldown for input with exponential backoff per
// attempt.
func (g *Guard) Cooldown(ctx context.Context, input string) {
	k := g.key(input)
	cntKey := k + ":attempts"
	attempts, _ := g.rdb.Incr(ctx, cntKey).Result()
	if attempts < 1 {
		attempts = 1
	}
	d := g.baseBackoff * (1 << (attempts - 1))
	if d > g.maxBackoff {
		d = g.maxBackoff
	}
	until := time.Now().Add(d).Unix()
	_ = g.rdb.Set(ctx, k, until, d).Err()
}

// Reset clears the cooldown for input after a successful run.
func (g *Guard) Reset(ctx context.Context, input string) {
	k := g.key(input)
	_ = g.rdb.Del(ctx, k, k+":attempts").Err()
}

// Allow tries to reserve the in-process slot for outputPath. Two jobs writing
// the same output concurrently would corrupt it, so the slot size is one.
// Returns a release function and true if allowed; otherwise nil,false.
func (g *Guard) Allow(outputPath string) (func(), bool) {
	key := strings.ToLower(outputPath)
	g.mu.Lock()
	ch, ok := g.sem[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.sem[key] = ch
	}
	g.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return func() {}, false
	}
}

func (g *Guard) Close() error { return g.rdb.Close() }
