package registry

import (
	"fmt"
	"reflect"
)

// Supplier returns a Factory for a constructor taking no arguments.
func Supplier[T any](fn func() T) Factory {
	return func(args ...any) (any, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: expected no arguments, got %d", ErrWrongConstructorShape, len(args))
		}
		return fn(), nil
	}
}

// Constructor1 returns a Factory for a constructor taking a single argument of type A.
func Constructor1[A, T any](fn func(A) (T, error)) Factory {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected 1 argument, got %d", ErrWrongConstructorShape, len(args))
		}
		a, err := argAs[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(a)
	}
}

// Constructor2 returns a Factory for a constructor taking arguments of types A and B.
func Constructor2[A, B, T any](fn func(A, B) (T, error)) Factory {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: expected 2 arguments, got %d", ErrWrongConstructorShape, len(args))
		}
		a, err := argAs[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argAs[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

func argAs[A any](args []any, i int) (A, error) {
	var zero A
	if args[i] == nil {
		// nil is acceptable for interface, pointer, slice and map parameters
		return zero, nil
	}
	a, ok := args[i].(A)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %s", ErrWrongConstructorShape, i, args[i], reflect.TypeFor[A]())
	}
	return a, nil
}
