package streams

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func collect[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	var out []T
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d values", len(out), n)
		}
	}
	return out
}

func TestBasics(t *testing.T) {
	t.Run("Just", func(t *testing.T) {
		got := collect(t, Just(5), 2)
		if len(got) != 1 || got[0] != 5 {
			t.Errorf("expected [5], got %v", got)
		}
	})

	t.Run("Once", func(t *testing.T) {
		ch := Once(context.Background(), func(context.Context) string { return "done" })
		got := collect(t, ch, 2)
		if len(got) != 1 || got[0] != "done" {
			t.Errorf("expected [done], got %v", got)
		}
	})

	t.Run("Once Cancelled Before Read", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch := Once(ctx, func(context.Context) int { return 1 })
		cancel()
		time.Sleep(10 * time.Millisecond)
		for range ch {
		}
	})

	t.Run("Map And Distinct", func(t *testing.T) {
		ctx := context.Background()
		src := make(chan int)
		go func() {
			for _, v := range []int{1, 1, 2, 2, 2, 3, 1} {
				src <- v
			}
			close(src)
		}()
		doubled := Map(ctx, Distinct(ctx, src, func(a, b int) bool { return a == b }), func(v int) int { return v * 2 })
		got := collect(t, doubled, 10)
		want := []int{2, 4, 6, 2}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})

	t.Run("First", func(t *testing.T) {
		ctx := context.Background()
		src := make(chan int, 3)
		src <- 1
		src <- 2
		src <- 3
		close(src)
		v, err := First(ctx, src, func(v int) bool { return v > 1 })
		if err != nil || v != 2 {
			t.Errorf("expected 2, got %d (%v)", v, err)
		}

		empty := make(chan int)
		close(empty)
		_, err = First(ctx, empty, nil)
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestSignal(t *testing.T) {
	t.Run("Coalesces Notifications", func(t *testing.T) {
		sig := NewSignal()
		ch, unsubscribe := sig.Subscribe()
		defer unsubscribe()

		sig.Notify()
		sig.Notify()
		sig.Notify()

		<-ch
		select {
		case <-ch:
			t.Error("expected burst to be coalesced into one notification")
		default:
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		sig := NewSignal()
		_, unsubscribe := sig.Subscribe()
		if sig.Subscribers() != 1 {
			t.Fatalf("expected 1 subscriber, got %d", sig.Subscribers())
		}
		unsubscribe()
		unsubscribe()
		if sig.Subscribers() != 0 {
			t.Errorf("expected 0 subscribers, got %d", sig.Subscribers())
		}
	})

	t.Run("Watch Re-evaluates", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := NewSignal()
		var calls atomic.Int32
		ch := Watch(ctx, sig, func(context.Context) int32 { return calls.Add(1) })

		if got := collect(t, ch, 1); got[0] != 1 {
			t.Fatalf("expected first evaluation, got %v", got)
		}
		sig.Notify()
		if got := collect(t, ch, 1); got[0] != 2 {
			t.Fatalf("expected second evaluation, got %v", got)
		}

		cancel()
		for range ch {
		}
		if sig.Subscribers() != 0 {
			t.Errorf("expected watch to unsubscribe on cancel, got %d subscribers", sig.Subscribers())
		}
	})
}

func TestState(t *testing.T) {
	t.Run("Store And Watch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		state := NewState([]string{"local"})
		ch := state.Watch(ctx)
		if got := collect(t, ch, 1)[0]; len(got) != 1 {
			t.Fatalf("expected initial value, got %v", got)
		}

		state.Store([]string{"local", "jellyfin"})
		if got := collect(t, ch, 1)[0]; len(got) != 2 {
			t.Errorf("expected updated value, got %v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		state := NewState(0)
		done := make(chan struct{})
		for range 10 {
			go func() {
				state.Update(func(v int) int { return v + 1 })
				done <- struct{}{}
			}()
		}
		for range 10 {
			<-done
		}
		if state.Load() != 10 {
			t.Errorf("expected 10, got %d", state.Load())
		}
	})
}

func TestSwitchMap(t *testing.T) {
	t.Run("Drops Results Of Superseded Inputs", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := make(chan string)
		release := make(chan struct{})
		var cancelled atomic.Bool

		out := SwitchMap(ctx, src, func(ctx context.Context, key string) <-chan string {
			ch := make(chan string)
			go func() {
				defer close(ch)
				if key == "slow" {
					select {
					case <-release:
					case <-ctx.Done():
					}
				}
				if !Send(ctx, ch, key) && key == "slow" {
					cancelled.Store(true)
				}
			}()
			return ch
		})

		src <- "slow"
		src <- "fast"
		close(release)

		got := collect(t, out, 1)
		if got[0] != "fast" {
			t.Fatalf("expected fast, got %v", got)
		}

		close(src)
		rest := collect(t, out, 5)
		if len(rest) != 0 {
			t.Errorf("expected no further values, got %v", rest)
		}
		deadline := time.Now().Add(time.Second)
		for !cancelled.Load() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if !cancelled.Load() {
			t.Error("expected superseded inner stream to be cancelled")
		}
	})

	t.Run("Forwards Every Inner Value", func(t *testing.T) {
		ctx := context.Background()
		src := make(chan int, 1)
		src <- 3
		close(src)

		out := SwitchMap(ctx, src, func(ctx context.Context, n int) <-chan int {
			ch := make(chan int)
			go func() {
				defer close(ch)
				for i := range n {
					Send(ctx, ch, i)
				}
			}()
			return ch
		})

		got := collect(t, out, 10)
		if len(got) != 3 {
			t.Errorf("expected 3 values, got %v", got)
		}
	})

	t.Run("Stops On Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		src := make(chan int)
		out := SwitchMap(ctx, src, func(ctx context.Context, n int) <-chan int { return Just(n) })
		cancel()
		select {
		case _, ok := <-out:
			if ok {
				t.Error("expected closed stream")
			}
		case <-time.After(time.Second):
			t.Error("stream did not close after cancel")
		}
	})
}
