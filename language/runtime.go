// Package language runs pattern programs end to end and publishes the
// resulting pattern trees to concurrent readers.
package language

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sansecio/hexpat/ast"
	"github.com/sansecio/hexpat/evaluator"
	"github.com/sansecio/hexpat/parser"
	"github.com/sansecio/hexpat/pattern"
	"github.com/sansecio/hexpat/provider"
)

// ErrBusy is returned by TryExecute while another execution is running.
var ErrBusy = errors.New("runtime is busy")

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the runtime and its evaluations.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithConfig sets the evaluator limits.
func WithConfig(cfg evaluator.Config) Option {
	return func(r *Runtime) { r.cfg = cfg }
}

// WithSourceName sets the name used in error locations.
func WithSourceName(name string) Option {
	return func(r *Runtime) { r.name = name }
}

// Runtime executes one program at a time. Tree, Console, OutVariables,
// Running and Abort are safe to call from any goroutine, also while an
// execution is in progress.
type Runtime struct {
	log  *zap.Logger
	cfg  evaluator.Config
	name string

	// exec serialises executions.
	exec sync.Mutex

	tree    atomic.Pointer[pattern.Tree]
	console atomic.Pointer[[]string]
	out     atomic.Pointer[map[string]any]
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New returns an idle Runtime without a tree.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		log:  zap.NewNop(),
		cfg:  evaluator.DefaultConfig(),
		name: "<pattern>",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute lexes, parses and evaluates code against src. On success the new
// tree replaces the published one; on failure the previous tree stays
// published. Console output of the failed run is still available.
func (r *Runtime) Execute(ctx context.Context, src provider.ByteSource, code string, in map[string]any) (*pattern.Tree, error) {
	r.exec.Lock()
	defer r.exec.Unlock()
	return r.run(ctx, src, code, in)
}

// TryExecute is like Execute but returns ErrBusy instead of waiting for a
// running execution.
func (r *Runtime) TryExecute(ctx context.Context, src provider.ByteSource, code string, in map[string]any) (*pattern.Tree, error) {
	if !r.exec.TryLock() {
		return nil, ErrBusy
	}
	defer r.exec.Unlock()
	return r.run(ctx, src, code, in)
}

func (r *Runtime) run(ctx context.Context, src provider.ByteSource, code string, in map[string]any) (*pattern.Tree, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	start := time.Now()
	prog, err := parser.New().ParseString(r.name, code)
	if err != nil {
		r.log.Debug("parsing failed", zap.Error(err))
		return nil, err
	}
	return r.evaluate(ctx, src, prog, in, start)
}

func (r *Runtime) evaluate(ctx context.Context, src provider.ByteSource, prog *ast.Program, in map[string]any, start time.Time) (*pattern.Tree, error) {
	e := evaluator.New(src,
		evaluator.WithConfig(r.cfg),
		evaluator.WithLogger(r.log),
		evaluator.WithInVariables(in))
	tree, err := e.Evaluate(ctx, prog)
	console := e.Console()
	r.console.Store(&console)
	if err != nil {
		r.log.Debug("evaluation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	out := e.OutVariables()
	r.out.Store(&out)
	r.tree.Store(tree)
	r.log.Debug("evaluation published",
		zap.Int("patterns", tree.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return tree, nil
}

// Abort interrupts the running execution, if any. The execution returns an
// evaluator error of kind Interrupted.
func (r *Runtime) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Running reports whether an execution is in progress.
func (r *Runtime) Running() bool { return r.running.Load() }

// Tree returns the latest published tree or nil. The tree is never modified
// after it has been published.
func (r *Runtime) Tree() *pattern.Tree { return r.tree.Load() }

// Console returns the console lines of the latest execution.
func (r *Runtime) Console() []string {
	if c := r.console.Load(); c != nil {
		return *c
	}
	return nil
}

// OutVariables returns the out variables of the latest successful execution.
func (r *Runtime) OutVariables() map[string]any {
	if o := r.out.Load(); o != nil {
		return *o
	}
	return nil
}
