package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		r.RecordFailure("api")
		if err := r.Allow("api"); err != nil {
			t.Fatalf("breaker opened after %d failures, want threshold 3", i+1)
		}
	}

	r.RecordFailure("api")
	if err := r.Allow("api"); !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("Allow after threshold = %v, want ErrProviderOpen", err)
	}
	if got := r.State("api"); got != Open {
		t.Fatalf("State = %v, want Open", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})

	r.RecordFailure("api")
	r.RecordSuccess("api")
	r.RecordFailure("api")

	if err := r.Allow("api"); err != nil {
		t.Fatalf("Allow = %v, want nil: success must reset the failure run", err)
	}
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})

	r.RecordFailure("api")
	if err := r.Allow("api"); !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("Allow while open = %v, want ErrProviderOpen", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := r.Allow("api"); err != nil {
		t.Fatalf("Allow after cooldown = %v, want nil probe admission", err)
	}
	if err := r.Allow("api"); !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("second Allow during probe = %v, want ErrProviderOpen", err)
	}

	r.RecordSuccess("api")
	if got := r.State("api"); got != Closed {
		t.Fatalf("State after probe success = %v, want Closed", got)
	}
	if err := r.Allow("api"); err != nil {
		t.Fatalf("Allow after close = %v, want nil", err)
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})

	r.RecordFailure("api")
	time.Sleep(20 * time.Millisecond)

	if err := r.Allow("api"); err != nil {
		t.Fatalf("probe Allow = %v, want nil", err)
	}
	r.RecordFailure("api")

	if err := r.Allow("api"); !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("Allow after failed probe = %v, want ErrProviderOpen", err)
	}
}

func TestBreakersAreIndependentPerProvider(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})

	r.RecordFailure("ddg")
	if err := r.Allow("ddg"); !errors.Is(err, ErrProviderOpen) {
		t.Fatal("ddg breaker should be open")
	}
	if err := r.Allow("http"); err != nil {
		t.Fatalf("http breaker tripped by ddg failures: %v", err)
	}
}

func TestExecuteRecordsOutcomes(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	ctx := context.Background()

	boom := Transient(errors.New("boom"), 503)
	for i := 0; i < 2; i++ {
		if err := r.Execute(ctx, "api", func(context.Context) error { return boom }); err == nil {
			t.Fatal("Execute should surface the error")
		}
	}
	if err := r.Execute(ctx, "api", func(context.Context) error { return nil }); !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("Execute on open circuit = %v, want ErrProviderOpen", err)
	}
}

func TestExecuteNonTransientErrorDoesNotTrip(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	appErr := errors.New("no match")
	if err := r.Execute(ctx, "api", func(context.Context) error { return appErr }); !errors.Is(err, appErr) {
		t.Fatalf("Execute = %v, want application error", err)
	}
	if err := r.Allow("api"); err != nil {
		t.Fatalf("Allow = %v: application errors must not count against the provider", err)
	}
}

func TestExecuteValReturnsValue(t *testing.T) {
	r := NewBreakers(DefaultBreakerConfig())

	got, err := ExecuteVal(context.Background(), r, "api", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("ExecuteVal = (%d, %v), want (42, nil)", got, err)
	}
}

func TestStatesSnapshot(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	r.RecordFailure("ddg")
	r.RecordSuccess("http")

	states := r.States()
	if states["ddg"] != Open {
		t.Fatalf("States[ddg] = %v, want Open", states["ddg"])
	}
	if states["http"] != Closed {
		t.Fatalf("States[http] = %v, want Closed", states["http"])
	}
}

func TestOnStateChangeFires(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})

	var gotProvider string
	var gotState State
	r.OnStateChange(func(provider string, state State) {
		gotProvider, gotState = provider, state
	})

	r.RecordFailure("api")
	if gotProvider != "api" || gotState != Open {
		t.Fatalf("OnStateChange got (%q, %v), want (api, Open)", gotProvider, gotState)
	}
}
