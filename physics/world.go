package physics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Physics advances one system's state by a time increment. dt may be
// positive, negative or zero.
type Physics interface {
	Step(state any, dt float64) (any, error)
}

// Observer is notified after every step of a registered system, outside
// the world lock, in registration order.
type Observer func(name string, state any, age float64)

// World tracks several named systems and steps them together. Systems
// are stepped concurrently; a registered system without physics is
// static and only ages.
type World struct {
	id  uuid.UUID
	log *zap.Logger

	mu        sync.Mutex
	systems   map[string]*system
	observers []Observer
	steps     int
}

type system struct {
	physics Physics
	state   any
	age     float64
}

// NewWorld returns an empty world with a fresh run ID. A nil logger
// disables logging.
func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	log.Info("world created", zap.String("run_id", id.String()))
	return &World{id: id, log: log, systems: make(map[string]*system)}
}

// ID returns the world's run ID.
func (w *World) ID() uuid.UUID { return w.id }

// Add registers a system under a unique name. physics may be nil for
// static state.
func (w *World) Add(name string, physics Physics, state any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.systems[name]; ok {
		return fmt.Errorf("physics: system %q already registered", name)
	}
	w.systems[name] = &system{physics: physics, state: state}
	w.log.Info("system registered", zap.String("run_id", w.id.String()), zap.String("name", name))
	return nil
}

// State returns the current state of a system.
func (w *World) State(name string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.systems[name]
	if !ok {
		return nil, false
	}
	return s.state, true
}

// Age returns the simulated time of a system, 0 if unknown.
func (w *World) Age(name string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.systems[name]; ok {
		return s.age
	}
	return 0
}

// Observe registers an observer for all future steps.
func (w *World) Observe(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, obs)
}

// Step advances every system by dt, concurrently. If any system fails
// the step is aborted and no state is committed.
func (w *World) Step(ctx context.Context, dt float64) error {
	w.mu.Lock()
	names := make([]string, 0, len(w.systems))
	for name := range w.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	states := make([]any, len(names))
	ages := make([]float64, len(names))
	stepper := make([]Physics, len(names))
	for i, name := range names {
		states[i] = w.systems[name].state
		ages[i] = w.systems[name].age
		stepper[i] = w.systems[name].physics
	}
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()

	next := make([]any, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if stepper[i] == nil {
				next[i] = states[i]
				return nil
			}
			out, err := stepper[i].Step(states[i], dt)
			if err != nil {
				return fmt.Errorf("physics: step of %q: %w", name, err)
			}
			next[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.mu.Lock()
	for i, name := range names {
		w.systems[name].state = next[i]
		w.systems[name].age = ages[i] + dt
	}
	w.steps++
	step := w.steps
	w.mu.Unlock()

	w.log.Debug("world stepped",
		zap.String("run_id", w.id.String()),
		zap.Int("step", step),
		zap.Float64("dt", dt))
	for _, obs := range observers {
		for i, name := range names {
			obs(name, next[i], ages[i]+dt)
		}
	}
	return nil
}

// Run performs steps consecutive Step calls, stopping early when the
// context is cancelled.
func (w *World) Run(ctx context.Context, dt float64, steps int) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Step(ctx, dt); err != nil {
			return err
		}
	}
	return nil
}
