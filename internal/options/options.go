// Package options provides the functional-option plumbing shared by the
// decoder and archive writer constructors.
//
// An Option is simply a configuration function; fallible steps return their
// error and Apply stops at the first failure. Constructors accept
// `opts ...options.Option[*T]` and call Apply on the partially built value.
package options

// Option configures a target of type T during construction.
type Option[T any] func(T) error

// New adapts a fallible configuration step into an Option.
func New[T any](fn func(T) error) Option[T] {
	return fn
}

// NoError adapts an infallible configuration step into an Option.
func NoError[T any](fn func(T)) Option[T] {
	return func(target T) error {
		fn(target)
		return nil
	}
}

// Apply runs each option against target in order, stopping at the first
// error. Nil options are skipped so callers can build option slices
// conditionally.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(target); err != nil {
			return err
		}
	}

	return nil
}
