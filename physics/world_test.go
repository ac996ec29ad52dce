package physics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// counter counts its steps by incrementing an int state.
type counter struct{}

func (counter) Step(state any, dt float64) (any, error) {
	return state.(int) + 1, nil
}

// failing always fails.
type failing struct{ err error }

func (f failing) Step(state any, dt float64) (any, error) {
	return nil, f.err
}

// blocking waits for release before stepping, to force overlap.
type blocking struct {
	release <-chan struct{}
	started chan<- struct{}
}

func (b blocking) Step(state any, dt float64) (any, error) {
	b.started <- struct{}{}
	<-b.release
	return state, nil
}

func TestWorldStep(t *testing.T) {
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", counter{}, 0))
	require.NoError(t, w.Add("b", counter{}, 10))
	require.NoError(t, w.Add("walls", nil, "static"))

	require.NoError(t, w.Step(context.Background(), 0.5))
	require.NoError(t, w.Step(context.Background(), 0.5))

	a, ok := w.State("a")
	require.True(t, ok)
	assert.Equal(t, 2, a)
	b, _ := w.State("b")
	assert.Equal(t, 12, b)
	walls, _ := w.State("walls")
	assert.Equal(t, "static", walls)
	assert.Equal(t, 1.0, w.Age("a"))
	assert.Equal(t, 1.0, w.Age("walls"), "static systems still age")
}

func TestWorldDuplicateName(t *testing.T) {
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", counter{}, 0))
	assert.Error(t, w.Add("a", counter{}, 0))
}

func TestWorldStepFailureCommitsNothing(t *testing.T) {
	w := NewWorld(nil)
	boom := errors.New("boom")
	require.NoError(t, w.Add("good", counter{}, 0))
	require.NoError(t, w.Add("bad", failing{err: boom}, 0))

	err := w.Step(context.Background(), 1)
	require.ErrorIs(t, err, boom)

	good, _ := w.State("good")
	assert.Equal(t, 0, good, "no state commits when any system fails")
	assert.Equal(t, 0.0, w.Age("good"))
}

func TestWorldObservers(t *testing.T) {
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", counter{}, 0))
	require.NoError(t, w.Add("b", counter{}, 5))

	var mu sync.Mutex
	type event struct {
		Name  string
		State any
		Age   float64
	}
	var got []event
	w.Observe(func(name string, state any, age float64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event{name, state, age})
	})

	require.NoError(t, w.Step(context.Background(), 1))
	want := []event{
		{"a", 1, 1},
		{"b", 6, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("observer events mismatch (-want +got):\n%s", diff)
	}
}

func TestWorldStepsConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", blocking{release: release, started: started}, 0))
	require.NoError(t, w.Add("b", blocking{release: release, started: started}, 0))

	done := make(chan error, 1)
	go func() { done <- w.Step(context.Background(), 1) }()

	// Both systems enter their step before either finishes.
	<-started
	<-started
	close(release)
	require.NoError(t, <-done)
}

func TestWorldRunCancel(t *testing.T) {
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", counter{}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx, 1, 100)
	assert.ErrorIs(t, err, context.Canceled)
	a, _ := w.State("a")
	assert.Equal(t, 0, a)
}

func TestWorldRun(t *testing.T) {
	w := NewWorld(nil)
	require.NoError(t, w.Add("a", counter{}, 0))
	require.NoError(t, w.Run(context.Background(), 0.1, 7))
	a, _ := w.State("a")
	assert.Equal(t, 7, a)
	assert.InDelta(t, 0.7, w.Age("a"), 1e-12)
}
