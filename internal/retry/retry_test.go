package retry

import (
	"errors"
	"testing"
	"time"
)

type kindErr struct {
	retryable bool
}

func (e kindErr) Error() string     { return "kind error" }
func (e kindErr) IsRetryable() bool { return e.retryable }

type throttled struct {
	after time.Duration
}

func (e throttled) Error() string             { return "throttled" }
func (e throttled) RetryDelay() time.Duration { return e.after }

func TestShouldRetry(t *testing.T) {
	transient := kindErr{retryable: true}
	fatal := kindErr{retryable: false}

	tests := []struct {
		name      string
		attempt   int
		err       error
		wantRetry bool
		wantDelay time.Duration
	}{
		{name: "first failure", attempt: 0, err: transient, wantRetry: true, wantDelay: 1 * time.Second},
		{name: "second failure", attempt: 1, err: transient, wantRetry: true, wantDelay: 2 * time.Second},
		{name: "third failure", attempt: 2, err: transient, wantRetry: true, wantDelay: 4 * time.Second},
		{name: "cap reached", attempt: 3, err: transient, wantRetry: false},
		{name: "past cap", attempt: 7, err: transient, wantRetry: false},
		{name: "non retryable at zero", attempt: 0, err: fatal, wantRetry: false},
		{name: "non retryable mid way", attempt: 2, err: fatal, wantRetry: false},
		{name: "non retryable at cap", attempt: 3, err: fatal, wantRetry: false},
		{name: "plain error is transient", attempt: 1, err: errors.New("boom"), wantRetry: true, wantDelay: 2 * time.Second},
		{name: "wrapped fatal", attempt: 0, err: errors.Join(errors.New("ctx"), fatal), wantRetry: false},
		{name: "server delay longer than backoff", attempt: 0, err: throttled{after: 3 * time.Second}, wantRetry: true, wantDelay: 3 * time.Second},
		{name: "server delay shorter than backoff", attempt: 2, err: throttled{after: time.Second}, wantRetry: true, wantDelay: 4 * time.Second},
		{name: "server delay capped", attempt: 0, err: throttled{after: time.Minute}, wantRetry: true, wantDelay: MaxDelay},
		{name: "server delay past cap", attempt: 3, err: throttled{after: time.Second}, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRetry(tt.attempt, tt.err)
			if got.Retry != tt.wantRetry {
				t.Errorf("ShouldRetry(%d).Retry = %v, want %v", tt.attempt, got.Retry, tt.wantRetry)
			}
			if got.Delay != tt.wantDelay {
				t.Errorf("ShouldRetry(%d).Delay = %v, want %v", tt.attempt, got.Delay, tt.wantDelay)
			}
		})
	}
}

func TestShouldRetry_Deterministic(t *testing.T) {
	err := kindErr{retryable: true}
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		first := ShouldRetry(attempt, err)
		second := ShouldRetry(attempt, err)
		if first != second {
			t.Errorf("attempt %d: got %+v then %+v", attempt, first, second)
		}
	}
}

func TestBackoff_WorstCaseBudget(t *testing.T) {
	var total time.Duration
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		total += Backoff(attempt)
	}
	if total != 7*time.Second {
		t.Errorf("total backoff = %v, want 7s", total)
	}
}
