package network

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer accepts one connection and answers the join handshake.
type stubServer struct {
	t        *testing.T
	listener net.Listener
	conns    chan net.Conn
}

func newStubServer(t *testing.T) *stubServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	s := &stubServer{t: t, listener: listener, conns: make(chan net.Conn, 1)}
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.conns <- conn
	}()
	return s
}

func (s *stubServer) addr() string {
	return s.listener.Addr().String()
}

func (s *stubServer) acceptAndWelcome(welcome *messages.ServerWelcome) net.Conn {
	s.t.Helper()
	conn := s.accept()

	msg, err := messages.ReadMessage(conn)
	require.NoError(s.t, err)
	require.Equal(s.t, messages.MessageTypeClientJoin, msg.Type)

	reply, err := messages.NewMessage(messages.MessageTypeServerWelcome, welcome)
	require.NoError(s.t, err)
	require.NoError(s.t, messages.WriteMessage(conn, reply))
	return conn
}

func (s *stubServer) accept() net.Conn {
	s.t.Helper()
	select {
	case conn := <-s.conns:
		s.t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		s.t.Fatal("no connection arrived")
		return nil
	}
}

func newTestManager(t *testing.T, addr string) *NetworkManager {
	t.Helper()
	manager := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:   addr,
		EventQueue:   queue.NewInMemoryQueue(100),
		SendInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { manager.Disconnect() })
	return manager
}

func TestConnectHandshake(t *testing.T) {
	server := newStubServer(t)
	manager := newTestManager(t, server.addr())

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.acceptAndWelcome(&messages.ServerWelcome{ClientID: 7, Seed: 42, TimeOfDay: 0.5})
	}()

	welcome, err := manager.Connect(&messages.ClientJoin{Name: "alice", PlaneType: messages.PlaneTypeLight})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), welcome.ClientID)
	assert.Equal(t, int64(42), welcome.Seed)
	assert.Equal(t, uint32(7), manager.ClientID())
	assert.Equal(t, StatusConnected, manager.Status())
	<-done
}

func TestConnectUnreachable(t *testing.T) {
	manager := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:  "127.0.0.1:1",
		EventQueue:  queue.NewInMemoryQueue(100),
		DialTimeout: 500 * time.Millisecond,
	})

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.Error(t, err)
	assert.Equal(t, StatusError, manager.Status())
}

func TestConnectRejected(t *testing.T) {
	server := newStubServer(t)
	manager := newTestManager(t, server.addr())

	go func() {
		conn := server.accept()
		if _, err := messages.ReadMessage(conn); err != nil {
			return
		}
		reply, err := messages.NewMessage(messages.MessageTypeServerError, &messages.ServerError{Message: "server is full"})
		if err != nil {
			return
		}
		messages.WriteMessage(conn, reply)
	}()

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.Error(t, err)
	rejected, ok := err.(*ErrJoinRejected)
	require.True(t, ok, "expected join rejection, got %v", err)
	assert.Contains(t, rejected.Reason, "full")
}

func TestConnectHandshakeTimeout(t *testing.T) {
	server := newStubServer(t)
	manager := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:       server.addr(),
		EventQueue:       queue.NewInMemoryQueue(100),
		HandshakeTimeout: 100 * time.Millisecond,
	})

	// accept but never answer
	go server.accept()

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.Error(t, err)
	assert.IsType(t, &ErrHandshakeTimeout{}, err)
}

func TestSendUpdateCoalesces(t *testing.T) {
	server := newStubServer(t)
	manager := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:   server.addr(),
		EventQueue:   queue.NewInMemoryQueue(100),
		SendInterval: 50 * time.Millisecond,
	})
	t.Cleanup(func() { manager.Disconnect() })

	var conn net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn = server.acceptAndWelcome(&messages.ServerWelcome{ClientID: 1})
	}()

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.NoError(t, err)
	<-done

	// stage several updates inside one send window, only the last may arrive
	for i := 1; i <= 5; i++ {
		manager.SendUpdate(&messages.ClientPlayerUpdate{
			Position:  kinematic.Vector3{X: float64(i)},
			Timestamp: int64(i),
		})
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, err := messages.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, messages.MessageTypeClientPlayerUpdate, msg.Type)
	update := messages.ClientPlayerUpdate{}
	require.NoError(t, json.Unmarshal(msg.Payload, &update))
	assert.Equal(t, int64(5), update.Timestamp)
}

func TestReadLoopEnqueuesMessagesAndTerminalError(t *testing.T) {
	server := newStubServer(t)
	eventQueue := queue.NewInMemoryQueue(100)
	manager := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr: server.addr(),
		EventQueue: eventQueue,
	})
	t.Cleanup(func() { manager.Disconnect() })

	var conn net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn = server.acceptAndWelcome(&messages.ServerWelcome{ClientID: 1})
	}()

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.NoError(t, err)
	<-done

	joined, err := messages.NewMessage(messages.MessageTypeServerPlayerJoined, &messages.ServerPlayerJoined{
		Player: messages.PlayerState{ID: 2, Name: "bob"},
	})
	require.NoError(t, err)
	require.NoError(t, messages.WriteMessage(conn, joined))
	conn.Close()

	require.Eventually(t, func() bool {
		return eventQueue.Size() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	item, err := eventQueue.Dequeue()
	require.NoError(t, err)
	event := item.(*Event)
	require.NotNil(t, event.Message)
	assert.Equal(t, messages.MessageTypeServerPlayerJoined, event.Message.Type)

	item, err = eventQueue.Dequeue()
	require.NoError(t, err)
	event = item.(*Event)
	require.Error(t, event.Err)
	assert.IsType(t, &ErrConnectionClosedByServer{}, event.Err)
	assert.Equal(t, StatusError, manager.Status())
}

func TestDisconnectSendsGoodbye(t *testing.T) {
	server := newStubServer(t)
	manager := newTestManager(t, server.addr())

	var conn net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn = server.acceptAndWelcome(&messages.ServerWelcome{ClientID: 1})
	}()

	_, err := manager.Connect(&messages.ClientJoin{Name: "alice"})
	require.NoError(t, err)
	<-done

	require.NoError(t, manager.Disconnect())
	assert.Equal(t, StatusDisconnected, manager.Status())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, err := messages.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, messages.MessageTypeClientDisconnect, msg.Type)

	// second disconnect is a no-op
	require.NoError(t, manager.Disconnect())
}
