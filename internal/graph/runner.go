package graph

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer is notified as nodes start and finish. Calls may arrive from
// several goroutines at once when parallel nodes are running.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(name string, d time.Duration, err error)
}

// Result summarizes one run of a graph.
type Result struct {
	Root string

	// FinalState is the state of each node by name when the run ended.
	// Steps of a series after a failure stay pending.
	FinalState ExecutionState

	// StartOrder lists nodes in the order they transitioned to running.
	StartOrder []string

	// Durations holds the wall time of each node that ran.
	Durations map[string]time.Duration

	// Errors holds the error of each failed leaf task.
	Errors map[string]error
}

// Runner executes task graphs.
type Runner struct {
	observers []Observer
	limit     int
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers an observer for every run.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithConcurrency caps how many children of one parallel node run at once.
// Zero or negative means no cap.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.limit = n }
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type run struct {
	runner *Runner

	mu        sync.Mutex
	state     ExecutionState
	order     []string
	durations map[string]time.Duration
	errs      map[string]error
}

// Run validates root and executes it. The returned Result is non-nil
// whenever validation passes, even if the run fails.
func (r *Runner) Run(ctx context.Context, root *Node) (*Result, error) {
	if err := Validate(root); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st := &run{
		runner:    r,
		state:     make(ExecutionState),
		durations: make(map[string]time.Duration),
		errs:      make(map[string]error),
	}
	Walk(root, func(n *Node) { st.state[n.Name] = StatePending })

	err := st.exec(ctx, root)

	st.mu.Lock()
	defer st.mu.Unlock()
	final := make(ExecutionState, len(st.state))
	for k, v := range st.state {
		final[k] = v
	}
	return &Result{
		Root:       root.Name,
		FinalState: final,
		StartOrder: append([]string(nil), st.order...),
		Durations:  st.durations,
		Errors:     st.errs,
	}, err
}

func (s *run) exec(ctx context.Context, n *Node) error {
	if err := s.transition(n.Name, StatePending, StateRunning); err != nil {
		return err
	}
	for _, o := range s.runner.observers {
		o.TaskStarted(n.Name)
	}
	start := time.Now()

	var err error
	switch n.Kind {
	case KindTask:
		err = s.execTask(ctx, n)
	case KindSeries:
		err = s.execSeries(ctx, n)
	case KindParallel:
		err = s.execParallel(ctx, n)
	}

	d := time.Since(start)
	to := StateSucceeded
	if err != nil {
		to = StateFailed
	}

	s.mu.Lock()
	s.durations[n.Name] = d
	s.mu.Unlock()

	if terr := s.transition(n.Name, StateRunning, to); terr != nil {
		return errors.Join(err, terr)
	}
	for _, o := range s.runner.observers {
		o.TaskFinished(n.Name, d, err)
	}
	return err
}

func (s *run) execTask(ctx context.Context, n *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.Fn(ctx); err != nil {
		s.mu.Lock()
		s.errs[n.Name] = err
		s.mu.Unlock()
		return &TaskError{Task: n.Name, Err: err}
	}
	return nil
}

// execSeries stops at the first failing non-optional child; the remaining
// children never start.
func (s *run) execSeries(ctx context.Context, n *Node) error {
	for _, c := range n.Children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.exec(ctx, c); err != nil && !c.Optional {
			return err
		}
	}
	return nil
}

// execParallel waits for every child. A failing child never cancels its
// siblings; all failures are joined.
func (s *run) execParallel(ctx context.Context, n *Node) error {
	var g errgroup.Group
	if s.runner.limit > 0 {
		g.SetLimit(s.runner.limit)
	}

	errs := make([]error, len(n.Children))
	for i, c := range n.Children {
		g.Go(func() error {
			if err := s.exec(ctx, c); err != nil && !c.Optional {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (s *run) transition(name string, from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Transition(s.state, name, from, to); err != nil {
		return err
	}
	if to == StateRunning {
		s.order = append(s.order, name)
	}
	return nil
}
