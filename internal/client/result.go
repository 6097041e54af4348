package client

import "context"

// Result is the outcome of a command: either Data or Err is meaningful.
type Result[T any] struct {
	Data T
	Err  error
}

// OK reports whether the command succeeded
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Message returns the user-facing error text, or "" on success
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Do runs call and captures its outcome as a Result
func Do[T any](ctx context.Context, call func(context.Context) (T, error)) Result[T] {
	data, err := call(ctx)
	return Result[T]{Data: data, Err: err}
}
