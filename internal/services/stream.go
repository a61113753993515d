package services

import (
	"context"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/streams"
)

// request emits Loading, then the outcome of fn.
func request[T any](ctx context.Context, fn func(context.Context) (T, error)) Stream[T] {
	out := make(chan models.RequestStatus[T])
	go func() {
		defer close(out)
		if !streams.Send(ctx, out, models.Loading[T]()) {
			return
		}
		v, err := fn(ctx)
		streams.Send(ctx, out, models.FromResult(v, err))
	}()
	return out
}

// watchRequest emits Loading, then the outcome of fn again every time sig fires.
func watchRequest[T any](ctx context.Context, sig *streams.Signal, fn func(context.Context) (T, error)) Stream[T] {
	out := make(chan models.RequestStatus[T])
	go func() {
		defer close(out)
		if !streams.Send(ctx, out, models.Loading[T]()) {
			return
		}
		for status := range streams.Watch(ctx, sig, func(ctx context.Context) models.RequestStatus[T] {
			v, err := fn(ctx)
			return models.FromResult(v, err)
		}) {
			if !streams.Send(ctx, out, status) {
				return
			}
		}
	}()
	return out
}

// failed emits a single error status.
func failed[T any](err error) Stream[T] {
	return streams.Just(models.Failure[T](err))
}

// succeeded emits a single success status.
func succeeded[T any](v T) Stream[T] {
	return streams.Just(models.Success(v))
}

// Settle opens a stream and returns its first terminal status. The stream is cancelled once it
// has settled, so watching backends stop re-emitting.
func Settle[T any](ctx context.Context, open func(context.Context) Stream[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	status, err := streams.First(ctx, open(ctx), func(s models.RequestStatus[T]) bool { return !s.IsLoading() })
	if err != nil {
		var zero T
		return zero, err
	}
	return status.Get()
}
