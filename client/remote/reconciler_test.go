package remote

import (
	"testing"
	"time"

	"github.com/eliperez-dev/flightsync/client/network"
	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderCall struct {
	id       uint32
	position kinematic.Vector3
	rotation kinematic.Quaternion
}

type fakeRenderer struct {
	spawned   []messages.PlayerState
	updates   []renderCall
	despawned []uint32
}

func (f *fakeRenderer) SpawnPlayer(state messages.PlayerState) {
	f.spawned = append(f.spawned, state)
}

func (f *fakeRenderer) UpdatePlayer(id uint32, position kinematic.Vector3, rotation kinematic.Quaternion) {
	f.updates = append(f.updates, renderCall{id: id, position: position, rotation: rotation})
}

func (f *fakeRenderer) DespawnPlayer(id uint32) {
	f.despawned = append(f.despawned, id)
}

type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestReconciler(t *testing.T, localID uint32) (*Reconciler, *fakeRenderer, queue.Queue, *testClock) {
	t.Helper()
	renderer := &fakeRenderer{}
	eventQueue := queue.NewInMemoryQueue(100)
	clock := &testClock{current: time.Unix(1000, 0)}
	reconciler := NewReconciler(NewReconcilerOptions{
		LocalID:    localID,
		EventQueue: eventQueue,
		Renderer:   renderer,
		Now:        clock.now,
	})
	return reconciler, renderer, eventQueue, clock
}

func enqueueMessage(t *testing.T, q queue.Queue, messageType messages.MessageType, payload interface{}) {
	t.Helper()
	msg, err := messages.NewMessage(messageType, payload)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(&network.Event{Message: msg}))
}

func TestBootstrapSpawnsExistingPlayers(t *testing.T) {
	reconciler, renderer, _, _ := newTestReconciler(t, 3)

	reconciler.Bootstrap([]messages.PlayerState{
		{ID: 1, Name: "alice"},
		{ID: 3, Name: "me"},
		{ID: 2, Name: "bob"},
	})

	require.Len(t, renderer.spawned, 2, "own id must not be spawned")
	roster := reconciler.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, uint32(1), roster[0].ID)
	assert.Equal(t, uint32(2), roster[1].ID)
}

func TestJoinedAndLeft(t *testing.T) {
	reconciler, renderer, eventQueue, _ := newTestReconciler(t, 1)

	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerJoined, &messages.ServerPlayerJoined{
		Player: messages.PlayerState{ID: 2, Name: "bob"},
	})
	require.NoError(t, reconciler.ProcessEvents())
	require.Len(t, renderer.spawned, 1)
	assert.Equal(t, "bob", renderer.spawned[0].Name)

	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerLeft, &messages.ServerPlayerLeft{ID: 2})
	require.NoError(t, reconciler.ProcessEvents())
	require.Len(t, renderer.despawned, 1)
	assert.Equal(t, uint32(2), renderer.despawned[0])
	assert.Empty(t, reconciler.Roster())

	// a second left for the same id is a no-op
	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerLeft, &messages.ServerPlayerLeft{ID: 2})
	require.NoError(t, reconciler.ProcessEvents())
	assert.Len(t, renderer.despawned, 1)
}

func TestUpdateForUnknownPlayerIsImplicitJoin(t *testing.T) {
	reconciler, renderer, eventQueue, _ := newTestReconciler(t, 1)

	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{
		ID:       5,
		Position: kinematic.Vector3{X: 10},
	})
	require.NoError(t, reconciler.ProcessEvents())

	require.Len(t, renderer.spawned, 1)
	assert.Equal(t, uint32(5), renderer.spawned[0].ID)
	assert.Equal(t, 10.0, renderer.spawned[0].Position.X)
}

func TestOwnUpdatesAreIgnored(t *testing.T) {
	reconciler, renderer, eventQueue, _ := newTestReconciler(t, 7)

	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{ID: 7})
	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerJoined, &messages.ServerPlayerJoined{
		Player: messages.PlayerState{ID: 7},
	})
	require.NoError(t, reconciler.ProcessEvents())

	assert.Empty(t, renderer.spawned)
	assert.Empty(t, reconciler.Roster())
}

func TestInterpolationBetweenStates(t *testing.T) {
	reconciler, renderer, eventQueue, clock := newTestReconciler(t, 1)

	reconciler.Bootstrap([]messages.PlayerState{
		{ID: 2, Position: kinematic.Vector3{X: 0}, Rotation: kinematic.QuaternionIdentity()},
	})

	// the next state arrives 100ms later
	clock.advance(100 * time.Millisecond)
	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{
		ID:       2,
		Position: kinematic.Vector3{X: 100},
		Rotation: kinematic.QuaternionIdentity(),
	})
	require.NoError(t, reconciler.ProcessEvents())

	// at arrival time the rendered position is still the previous state
	reconciler.Update()
	require.Len(t, renderer.updates, 1)
	assert.InDelta(t, 0.0, renderer.updates[0].position.X, 1e-9)

	// halfway through the arrival gap the position is halfway
	clock.advance(50 * time.Millisecond)
	reconciler.Update()
	require.Len(t, renderer.updates, 2)
	assert.InDelta(t, 50.0, renderer.updates[1].position.X, 1e-9)

	// past the gap the position clamps at the newest state, no extrapolation
	clock.advance(500 * time.Millisecond)
	reconciler.Update()
	require.Len(t, renderer.updates, 3)
	assert.InDelta(t, 100.0, renderer.updates[2].position.X, 1e-9)
}

func TestStalePlayersFreeze(t *testing.T) {
	reconciler, renderer, eventQueue, clock := newTestReconciler(t, 1)

	reconciler.Bootstrap([]messages.PlayerState{{ID: 2}})
	enqueueMessage(t, eventQueue, messages.MessageTypeServerPlayerUpdate, &messages.ServerPlayerUpdate{
		ID:       2,
		Position: kinematic.Vector3{X: 10},
	})
	require.NoError(t, reconciler.ProcessEvents())

	reconciler.Update()
	require.Len(t, renderer.updates, 1)

	clock.advance(DefaultStaleAfter + time.Second)
	reconciler.Update()
	assert.Len(t, renderer.updates, 1, "stale players get no render updates")
}

func TestProcessEventsReturnsTerminalError(t *testing.T) {
	reconciler, _, eventQueue, _ := newTestReconciler(t, 1)

	require.NoError(t, eventQueue.Enqueue(&network.Event{Err: &network.ErrConnectionClosedByServer{}}))
	err := reconciler.ProcessEvents()
	require.Error(t, err)
	assert.IsType(t, &network.ErrConnectionClosedByServer{}, err)
}
