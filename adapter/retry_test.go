package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		retries   int
		failFirst int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{"first try", 3, 0, false, 1, false},
		{"recovers", 3, 2, false, 3, false},
		{"exhausted", 2, 10, false, 3, true},
		{"no retries", 0, 10, false, 1, true},
		{"permanent stops", 5, 10, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := RetryPolicy{Retries: tt.retries, Backoff: time.Millisecond}
			err := p.Do(t.Context(), func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					if tt.permanent {
						return Permanent(boom)
					}
					return boom
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr && !errors.Is(err, boom) {
				t.Errorf("underlying error lost: %v", err)
			}
		})
	}
}

func TestRetryPolicy_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := RetryPolicy{Retries: 3, Backoff: time.Hour}

	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return errors.New("unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
