package deepblue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Grara/deepblue-backend/refresh"
)

func newBenchEngine(b *testing.B) *Engine {
	b.Helper()
	cfg := validTestConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := New().
		WithConfig(cfg).
		WithRefreshStore(refresh.NewMemoryStore(0)).
		WithCredentialVerifier(newMemberBook()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	return engine
}

func BenchmarkAuthenticate(b *testing.B) {
	engine := newBenchEngine(b)
	pair, err := engine.Login(context.Background(), "user", "1234")
	if err != nil {
		b.Fatalf("login: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := engine.Authenticate(pair.AccessToken); !ok {
				b.Fatal("authenticate failed")
			}
		}
	})
}

func BenchmarkRenew(b *testing.B) {
	engine := newBenchEngine(b)
	pair, err := engine.Login(context.Background(), "user", "1234")
	if err != nil {
		b.Fatalf("login: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := engine.Renew(context.Background(), pair.RefreshToken); !res.OK() {
			b.Fatalf("renew: %v", res.Reason)
		}
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricAuthenticateSuccess)
		}
	})
}
