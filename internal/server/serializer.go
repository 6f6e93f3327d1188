package server

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/errors"
)

// Serializer gives concurrent front ends exclusive, one-at-a-time access
// to a single Engine. Waiting callers give up when their context ends.
type Serializer struct {
	sem    *semaphore.Weighted
	engine *engine.Engine
}

// NewSerializer wraps e.
func NewSerializer(e *engine.Engine) *Serializer {
	return &Serializer{
		sem:    semaphore.NewWeighted(1),
		engine: e,
	}
}

// Execute runs one textual statement under the lock.
func (s *Serializer) Execute(ctx context.Context, sql string) (*engine.Result, error) {
	var res *engine.Result
	err := s.Do(ctx, func(e *engine.Engine) error {
		var err error
		res, err = e.Execute(sql)
		return err
	})
	return res, err
}

// Do runs fn with exclusive access to the engine. fn must not retain
// the engine after returning.
func (s *Serializer) Do(ctx context.Context, fn func(e *engine.Engine) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(errors.ErrCategoryInternal, errors.CodeUnexpected,
			"request cancelled while waiting for the engine", err)
	}
	defer s.sem.Release(1)
	return fn(s.engine)
}
