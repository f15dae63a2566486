package reconcile

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// Learn persists every confirmed header and value choice of one import
// batch. Entries with an empty target were ignored by the user and are
// skipped. Upserts run concurrently; each one succeeds or fails on its own
// and nothing is retried. The returned result is informational: callers
// must not fail the import on LearnResult.Err.
//
// Writes ignore ctx cancellation and are bounded by the engine's learn
// timeout instead. Learn returns once every write settled.
func (e *Engine) Learn(ctx context.Context, orgID, entity string, c model.Confirmation) model.LearnResult {
	scope := scopeOf(orgID, entity)
	if !scope.Valid() {
		return model.LearnResult{Err: store.ErrInvalidScope}
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.LearnTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		res     model.LearnResult
		skipped int
	)
	settle := func(err error, fields ...zap.Field) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			res.Persisted++
		case errors.Is(err, store.ErrSkipped):
			res.Skipped++
		default:
			res.Failed++
			multierr.AppendInto(&res.Err, err)
			zap.L().Warn("reconcile: learn write failed",
				append(fields, zap.String("org_id", orgID), zap.String("entity", entity), zap.Error(err))...,
			)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Concurrency)

	for header, target := range c.Headers {
		if header == "" || target == "" {
			skipped++
			continue
		}
		g.Go(func() error {
			err := e.store.UpsertHeaderPattern(wctx, scope, header, target)
			settle(err, zap.String("header", header))
			return nil
		})
	}

	for field, values := range c.Values {
		if field == "" {
			skipped += len(values)
			continue
		}
		kind := e.schema.KindOf(entity, field)
		// Raw spellings that normalize to one key count once; the
		// lexically first spelling decides the target.
		seen := make(map[string]bool, len(values))
		for _, raw := range slices.Sorted(maps.Keys(values)) {
			target := values[raw]
			key := normalize.Key(kind, raw)
			if key == "" || target == "" || seen[key] {
				skipped++
				continue
			}
			seen[key] = true
			g.Go(func() error {
				err := e.store.UpsertValuePattern(wctx, scope, field, key, target)
				settle(err, zap.String("field", field), zap.String("value", raw))
				return nil
			})
		}
	}

	_ = g.Wait()
	res.Skipped += skipped

	zap.L().Debug("reconcile: learned confirmation",
		zap.String("org_id", orgID),
		zap.String("entity", entity),
		zap.Int("persisted", res.Persisted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res
}
