package streams

import (
	"context"
	"errors"
)

// ErrClosed is returned by [First] when the stream ends without a matching value.
var ErrClosed = errors.New("stream closed")

// Send delivers v on ch unless ctx is done first. It reports whether v was delivered.
func Send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

// Just returns a stream that emits v and closes.
func Just[T any](v T) <-chan T {
	out := make(chan T, 1)
	out <- v
	close(out)
	return out
}

// Once runs fn in its own goroutine and emits the result, unless ctx is cancelled first.
func Once[T any](ctx context.Context, fn func(context.Context) T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		Send(ctx, out, fn(ctx))
	}()
	return out
}

// Watch emits fn(ctx) immediately and again after every notification of sig.
// Notifications that arrive while fn runs are coalesced into one re-evaluation.
func Watch[T any](ctx context.Context, sig *Signal, fn func(context.Context) T) <-chan T {
	notify, unsubscribe := sig.Subscribe()
	out := make(chan T)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			if !Send(ctx, out, fn(ctx)) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
		}
	}()
	return out
}

// Map applies fn to every value of src.
func Map[S, T any](ctx context.Context, src <-chan S, fn func(S) T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-src:
				if !ok || !Send(ctx, out, fn(v)) {
					return
				}
			}
		}
	}()
	return out
}

// Distinct drops values equal to the previously emitted one.
func Distinct[T any](ctx context.Context, src <-chan T, equal func(a, b T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var last T
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-src:
				if !ok {
					return
				}
				if !first && equal(last, v) {
					continue
				}
				first, last = false, v
				if !Send(ctx, out, v) {
					return
				}
			}
		}
	}()
	return out
}

// SwitchMap subscribes to fn(v) for each value v of src, forwarding its values until the next
// value of src arrives. At that point the previous inner stream's context is cancelled and any of
// its values not yet delivered are dropped.
//
// The output closes when ctx is done, or when src is closed and the last inner stream has ended.
func SwitchMap[S, T any](ctx context.Context, src <-chan S, fn func(context.Context, S) <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		innerCancel := context.CancelFunc(func() {})
		defer func() {
			innerCancel()
			close(out)
		}()

		var inner <-chan T
		var pending T
		hasPending := false

		for {
			var sendCh chan<- T
			recvCh := inner
			if hasPending {
				sendCh, recvCh = out, nil
			}

			select {
			case <-ctx.Done():
				return

			case s, ok := <-src:
				if !ok {
					src = nil
					if inner == nil && !hasPending {
						return
					}
					continue
				}
				innerCancel()
				innerCtx, cancel := context.WithCancel(ctx)
				innerCancel = cancel
				inner = fn(innerCtx, s)
				hasPending = false

			case v, ok := <-recvCh:
				if !ok {
					inner = nil
					if src == nil {
						return
					}
					continue
				}
				pending, hasPending = v, true

			case sendCh <- pending:
				hasPending = false
				if inner == nil && src == nil {
					return
				}
			}
		}
	}()
	return out
}

// First returns the first value of ch satisfying match.
func First[T any](ctx context.Context, ch <-chan T, match func(T) bool) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case v, ok := <-ch:
			if !ok {
				return zero, ErrClosed
			}
			if match == nil || match(v) {
				return v, nil
			}
		}
	}
}
