package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name     string
	startErr error
	events   *[]string
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start "+f.name)
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	*f.events = append(*f.events, "stop "+f.name)
	return nil
}

func (f *fakeComponent) Name() string { return f.name }

func TestStartAndStopOrder(t *testing.T) {
	var events []string
	store := &fakeComponent{name: "store", events: &events}
	miner := &fakeComponent{name: "miner", events: &events}
	api := &fakeComponent{name: "api", events: &events}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(miner))
	require.NoError(t, m.Register(api, store, miner))

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{
		"start store", "start miner", "start api",
		"stop api", "stop miner", "stop store",
	}, events)
}

func TestStartFailureRollsBack(t *testing.T) {
	var events []string
	store := &fakeComponent{name: "store", events: &events}
	broken := &fakeComponent{name: "broken", startErr: errors.New("boom"), events: &events}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(broken, store))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"start store", "stop store"}, events)
}

func TestRegisterValidation(t *testing.T) {
	var events []string
	store := &fakeComponent{name: "store", events: &events}
	orphan := &fakeComponent{name: "orphan", events: &events}

	m := NewManager()
	assert.Error(t, m.Register(nil))
	assert.Error(t, m.Register(&fakeComponent{name: "", events: &events}))

	require.NoError(t, m.Register(store))
	assert.Error(t, m.Register(store))

	// Dependencies must already be registered.
	assert.Error(t, m.Register(orphan, &fakeComponent{name: "ghost", events: &events}))
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	var events []string
	store := &fakeComponent{name: "store", events: &events}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Stop(context.Background()))
	assert.Empty(t, events)
}
