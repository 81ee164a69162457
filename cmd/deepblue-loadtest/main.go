// Command deepblue-loadtest measures authenticate and renewal throughput of
// an in-process engine backed by the Redis refresh store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/refresh"
)

type loginState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

// anyone accepts every identifier with the secret "load".
type anyone struct{}

func (anyone) VerifyCredentials(_ context.Context, id, secret string) (deepblue.Principal, error) {
	if secret != "load" {
		return deepblue.Principal{}, deepblue.ErrInvalidCredentials
	}
	return deepblue.Principal{Subject: id, Scope: "ROLE_USER"}, nil
}

func main() {
	var (
		logins      = flag.Int("logins", 10000, "number of logins to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (authenticate + renew)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rt", "refresh key prefix")
		rotate      = flag.Bool("rotate", false, "rotate refresh tokens on renewal")
	)
	flag.Parse()

	if *logins <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "logins, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := deepblue.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-secret-0123456789abcdefghij")
	cfg.JWT.Issuer = "deepblue-loadtest"
	cfg.Refresh.RotateRefreshToken = *rotate
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := deepblue.New().
		WithConfig(cfg).
		WithRefreshStore(refresh.NewRedisStore(client, cfg.JWT.RefreshTTL, refresh.WithKeyPrefix(*prefix))).
		WithCredentialVerifier(anyone{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]loginState, *logins)
	fmt.Printf("seeding %d logins...\n", *logins)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.Login(ctx, fmt.Sprintf("user%d", i), "load")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(states, *ops, *concurrency, 7919, func(s *loginState) bool {
		_, ok := engine.Authenticate(s.access)
		return ok
	})
	renewStats := runPhase(states, *ops, *concurrency, 6151, func(s *loginState) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		res := engine.Renew(ctx, s.refresh)
		if !res.OK() {
			return false
		}
		s.access = res.Pair.AccessToken
		s.refresh = res.Pair.RefreshToken
		return true
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("renew", renewStats)
}

func runPhase(states []loginState, ops, concurrency int, seed int64, op func(*loginState) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				ok := op(state)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
