// Package reconcile maps fresh import data onto the canonical schema using
// patterns learned from earlier user confirmations, and records new
// confirmations so later imports need less manual mapping.
//
// Resolution and learning are best-effort: a pattern store that fails never
// blocks the import itself. Reads degrade to "no suggestions" and failed
// writes are logged and dropped.
package reconcile

import (
	"time"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// Options tunes an Engine. Zero values take the defaults.
type Options struct {
	// ConfidencePivot is the usage count at which confidence reaches 0.5.
	ConfidencePivot float64
	// Concurrency bounds the upserts in flight for one Learn call.
	Concurrency int
	// LearnTimeout bounds how long one Learn call may keep writing.
	LearnTimeout time.Duration
}

const (
	defaultConfidencePivot = 2
	defaultConcurrency     = 8
	defaultLearnTimeout    = 10 * time.Second
)

// Engine resolves and learns header and value mappings for one pattern store.
type Engine struct {
	store  store.Store
	schema *model.SchemaRegistry
	opts   Options
}

// New creates an Engine. A nil schema treats every field as a reference.
func New(st store.Store, schema *model.SchemaRegistry, opts Options) *Engine {
	if opts.ConfidencePivot <= 0 {
		opts.ConfidencePivot = defaultConfidencePivot
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.LearnTimeout <= 0 {
		opts.LearnTimeout = defaultLearnTimeout
	}
	return &Engine{store: st, schema: schema, opts: opts}
}

// Schema returns the registry used to classify fields.
func (e *Engine) Schema() *model.SchemaRegistry { return e.schema }

func scopeOf(orgID, entity string) model.Scope {
	return model.Scope{OrganizationID: orgID, Entity: entity}
}
