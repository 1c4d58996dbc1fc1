package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.MinDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	p.MaxElapsed = 200 * time.Millisecond
	// Tests in this file retry generic errors, not SQLITE_BUSY/LOCKED, so
	// they opt out of the default classifier explicitly.
	p.Classify = nil
	return p
}

func TestDefaultPolicyOnlyRetriesBusyOrLocked(t *testing.T) {
	p := DefaultPolicy()
	if p.Classify == nil {
		t.Fatalf("expected DefaultPolicy to set a Classify func")
	}
	if p.Classify(errors.New("some other failure")) {
		t.Fatalf("expected a generic error to be classified as non-retryable")
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Fatalf("expected 1 call returning 42, got %d calls, result %d", calls, got)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected 3 calls ending in ok, got %d calls, result %q", calls, got)
	}
}

func TestDoStopsOnClassifyNonRetryable(t *testing.T) {
	calls := 0
	sentinel := errors.New("fatal")
	p := fastPolicy()
	p.Classify = func(err error) bool { return false }

	_, err := Do(context.Background(), p, func() (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(), func() (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected an error from a canceled context")
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls once ctx was already canceled, got %d", calls)
	}
}

func TestDoOnFailedAttemptCalledPerRetry(t *testing.T) {
	var attempts []int
	p := fastPolicy()
	p.OnFailedAttempt = func(ctx context.Context, attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	_, _ = Do(context.Background(), p, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 1, nil
	})
	if len(attempts) != 1 {
		t.Fatalf("expected OnFailedAttempt called once, got %d", len(attempts))
	}
}

func TestPolicyMergePrecedence(t *testing.T) {
	base := Policy{MaxAttempts: 5, MinDelay: 10 * time.Millisecond}
	override := Policy{MaxAttempts: 1}
	merged := base.Merge(override)
	if merged.MaxAttempts != 1 {
		t.Fatalf("expected override to win for MaxAttempts, got %d", merged.MaxAttempts)
	}
	if merged.MinDelay != 10*time.Millisecond {
		t.Fatalf("expected base value retained for MinDelay, got %v", merged.MinDelay)
	}
}
