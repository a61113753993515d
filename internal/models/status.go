package models

// RequestState is the phase of a [RequestStatus].
type RequestState int

const (
	StateLoading RequestState = iota
	StateSuccess
	StateError
)

func (s RequestState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestStatus is one emission of a listing or detail stream.
type RequestStatus[T any] struct {
	State    RequestState
	Value    T
	Err      error
	Progress float64 // 0..1 while loading, when known
}

func Loading[T any]() RequestStatus[T] {
	return RequestStatus[T]{State: StateLoading}
}

func Success[T any](v T) RequestStatus[T] {
	return RequestStatus[T]{State: StateSuccess, Value: v}
}

func Failure[T any](err error) RequestStatus[T] {
	return RequestStatus[T]{State: StateError, Err: err}
}

// FromResult turns a (value, error) pair into a terminal status.
func FromResult[T any](v T, err error) RequestStatus[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

func (s RequestStatus[T]) IsLoading() bool { return s.State == StateLoading }
func (s RequestStatus[T]) IsSuccess() bool { return s.State == StateSuccess }
func (s RequestStatus[T]) IsError() bool   { return s.State == StateError }

// Get returns the value or the error of a terminal status.
func (s RequestStatus[T]) Get() (T, error) {
	return s.Value, s.Err
}

// MapStatus converts the value of a status, keeping its state and error.
func MapStatus[T, U any](s RequestStatus[T], fn func(T) U) RequestStatus[U] {
	out := RequestStatus[U]{State: s.State, Err: s.Err, Progress: s.Progress}
	if s.State == StateSuccess {
		out.Value = fn(s.Value)
	}
	return out
}
