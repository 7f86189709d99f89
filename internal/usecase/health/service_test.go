package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type mockBreaker string

func (m mockBreaker) BreakerState() string { return string(m) }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockEmbeddingChecker{}, mockBreaker("closed"))
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "cache", "embedding", "llm"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBErrorIsUnhealthy(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{}, &mockEmbeddingChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_Degraded(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Service
		failed string
	}{
		{"cache down", New(&mockPinger{}, &mockPinger{err: errors.New("timeout")}, nil, nil), "cache"},
		{"embedding down", New(&mockPinger{}, nil, &mockEmbeddingChecker{err: errors.New("401")}, nil), "embedding"},
		{"breaker open", New(&mockPinger{}, nil, nil, mockBreaker("open")), "llm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.svc.Check(context.Background())
			if r.Status != Degraded {
				t.Errorf("expected %q, got %q", Degraded, r.Status)
			}
			if r.Checks[tt.failed] != CheckError {
				t.Errorf("expected %s %q, got %q", tt.failed, CheckError, r.Checks[tt.failed])
			}
			if r.Checks["database"] != CheckOK {
				t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
			}
		})
	}
}

func TestCheck_HalfOpenBreakerIsHealthy(t *testing.T) {
	r := New(&mockPinger{}, nil, nil, mockBreaker("half-open")).Check(context.Background())
	if r.Checks["llm"] != CheckOK || r.Status != Healthy {
		t.Errorf("half-open breaker should probe, not fail: %+v", r)
	}
}

func TestCheck_OptionalComponentsOmitted(t *testing.T) {
	r := New(&mockPinger{}, nil, nil, nil).Check(context.Background())
	if len(r.Checks) != 1 {
		t.Errorf("expected only database check, got %v", r.Checks)
	}
}
