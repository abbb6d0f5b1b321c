package stream

import (
	"bufio"
	"context"
	"io"
)

// Channel combinators in the style of
// https://betterprogramming.pub/writing-a-stream-api-in-go-afbc3c4350e2

func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// Lines yields the non-empty lines of r, e.g. NDJSON fix logs.
func Lines(ctx context.Context, r io.Reader) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case <-ctx.Done():
				return
			case out <- line:
			}
		}
	}()
	return out
}

func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if predicate(element) {
				select {
				case <-ctx.Done():
					return
				case out <- element:
				}
			}
		}
	}()
	return out
}

func Transform[I any, O any](ctx context.Context, transformer func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- transformer(element):
			}
		}
	}()
	return out
}

func Collect[T any](ctx context.Context, in <-chan T) []T {
	var out []T
	for {
		select {
		case <-ctx.Done():
			return out
		case element, ok := <-in:
			if !ok {
				return out
			}
			out = append(out, element)
		}
	}
}

// Sink drains in, calling fn for each element, until in closes or ctx ends.
func Sink[T any](ctx context.Context, fn func(T), in <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case element, ok := <-in:
			if !ok {
				return
			}
			fn(element)
		}
	}
}
