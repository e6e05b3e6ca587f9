package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonTransientError(t *testing.T) {
	calls := 0
	appErr := errors.New("bad input")
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return appErr
	})
	if !errors.Is(err, appErr) {
		t.Fatalf("Do = %v, want application error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1: non-transient errors must not retry", calls)
	}
}

func TestDoNeverRetriesOpenCircuit(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(context.Context) error {
		calls++
		return ErrProviderOpen
	})
	if !errors.Is(err, ErrProviderOpen) {
		t.Fatalf("Do = %v, want ErrProviderOpen", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := Transient(errors.New("down"), 502)
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do = %v, want last error", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetry(5), func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("flaky"), 503)
	})
	if err == nil {
		t.Fatal("Do = nil, want error after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoValReturnsValue(t *testing.T) {
	got, err := DoVal(context.Background(), fastRetry(2), func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("DoVal = (%q, %v), want (ok, nil)", got, err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", Transient(errors.New("x"), 429), true},
		{"deadline", context.DeadlineExceeded, true},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, true},
		{"nxdomain", &net.DNSError{Err: "no such host", IsNotFound: true}, false},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"conn reset text", errors.New("read: connection reset by peer"), true},
		{"application error", errors.New("no match"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("IsTransientStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		if IsTransientStatus(code) {
			t.Errorf("IsTransientStatus(%d) = true, want false", code)
		}
	}
}
