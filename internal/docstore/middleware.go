package docstore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ObserveFunc receives the outcome of every store call.
type ObserveFunc func(op string, d time.Duration, err error)

// Instrument wraps s so each call is reported to observe.
func Instrument(s Store, observe ObserveFunc) Store {
	if observe == nil {
		return s
	}
	return &instrumented{next: s, observe: observe}
}

type instrumented struct {
	next    Store
	observe ObserveFunc
}

func (s *instrumented) track(op string, start time.Time, err error) {
	s.observe(op, time.Since(start), err)
}

func (s *instrumented) Add(ctx context.Context, collection string, data map[string]any) (id string, err error) {
	defer func(start time.Time) { s.track("add", start, err) }(time.Now())
	return s.next.Add(ctx, collection, data)
}

func (s *instrumented) Get(ctx context.Context, collection, id string) (doc *Document, err error) {
	defer func(start time.Time) { s.track("get", start, err) }(time.Now())
	return s.next.Get(ctx, collection, id)
}

func (s *instrumented) Query(ctx context.Context, collection string, q Query) (docs []*Document, err error) {
	defer func(start time.Time) { s.track("query", start, err) }(time.Now())
	return s.next.Query(ctx, collection, q)
}

func (s *instrumented) Update(ctx context.Context, collection, id string, fields map[string]any) (err error) {
	defer func(start time.Time) { s.track("update", start, err) }(time.Now())
	return s.next.Update(ctx, collection, id, fields)
}

func (s *instrumented) UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) (err error) {
	defer func(start time.Time) { s.track("update_if", start, err) }(time.Now())
	return s.next.UpdateIf(ctx, collection, id, field, want, fields)
}

func (s *instrumented) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) (err error) {
	defer func(start time.Time) { s.track("array_union", start, err) }(time.Now())
	return s.next.ArrayUnion(ctx, collection, id, field, values...)
}

func (s *instrumented) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) (err error) {
	defer func(start time.Time) { s.track("set", start, err) }(time.Now())
	return s.next.Set(ctx, collection, id, data, merge)
}

func (s *instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { s.track("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, collection, id)
}

func (s *instrumented) Close() error { return s.next.Close() }

// Throttle wraps s so calls wait on limiter before reaching the backend.
// A cancelled wait is reported as a store failure.
func Throttle(s Store, limiter *rate.Limiter) Store {
	if limiter == nil {
		return s
	}
	return &throttled{next: s, limiter: limiter}
}

type throttled struct {
	next    Store
	limiter *rate.Limiter
}

func (s *throttled) wait(ctx context.Context, op string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: throttled: %w", ErrStore, op, err)
	}
	return nil
}

func (s *throttled) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := s.wait(ctx, "add"); err != nil {
		return "", err
	}
	return s.next.Add(ctx, collection, data)
}

func (s *throttled) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := s.wait(ctx, "get"); err != nil {
		return nil, err
	}
	return s.next.Get(ctx, collection, id)
}

func (s *throttled) Query(ctx context.Context, collection string, q Query) ([]*Document, error) {
	if err := s.wait(ctx, "query"); err != nil {
		return nil, err
	}
	return s.next.Query(ctx, collection, q)
}

func (s *throttled) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.wait(ctx, "update"); err != nil {
		return err
	}
	return s.next.Update(ctx, collection, id, fields)
}

func (s *throttled) UpdateIf(ctx context.Context, collection, id, field string, want any, fields map[string]any) error {
	if err := s.wait(ctx, "update_if"); err != nil {
		return err
	}
	return s.next.UpdateIf(ctx, collection, id, field, want, fields)
}

func (s *throttled) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	if err := s.wait(ctx, "array_union"); err != nil {
		return err
	}
	return s.next.ArrayUnion(ctx, collection, id, field, values...)
}

func (s *throttled) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := s.wait(ctx, "set"); err != nil {
		return err
	}
	return s.next.Set(ctx, collection, id, data, merge)
}

func (s *throttled) Delete(ctx context.Context, collection, id string) error {
	if err := s.wait(ctx, "delete"); err != nil {
		return err
	}
	return s.next.Delete(ctx, collection, id)
}

func (s *throttled) Close() error { return s.next.Close() }
