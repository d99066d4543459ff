package broadcast

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
)

const (
	// DefaultWriteTimeout bounds a single frame write to a peer
	DefaultWriteTimeout = 5 * time.Second
	// DefaultMaxPendingUpdates caps the number of player updates queued per peer
	DefaultMaxPendingUpdates = 64
)

type outboundKind int

const (
	// control frames (welcome, joined, left, errors) are never dropped
	outboundKindControl outboundKind = iota
	// update frames may be coalesced or dropped under backpressure
	outboundKindUpdate
)

type outbound struct {
	kind     outboundKind
	playerID uint32
	frame    []byte
}

// Peer owns the write half of one connection. Frames are enqueued
// without blocking and drained by a single writer goroutine, so a
// stalled connection never delays delivery to anyone else.
type Peer struct {
	conn              net.Conn
	writeTimeout      time.Duration
	maxPendingUpdates int

	mu             sync.Mutex
	cond           *sync.Cond
	queue          []outbound
	pendingUpdates int
	closed         bool

	closeOnce sync.Once
	done      chan struct{}
}

type NewPeerOptions struct {
	Conn              net.Conn
	WriteTimeout      time.Duration
	MaxPendingUpdates int
}

// NewPeer creates a peer for the given connection and starts its writer.
func NewPeer(opts NewPeerOptions) *Peer {
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.MaxPendingUpdates == 0 {
		opts.MaxPendingUpdates = DefaultMaxPendingUpdates
	}
	p := &Peer{
		conn:              opts.Conn,
		writeTimeout:      opts.WriteTimeout,
		maxPendingUpdates: opts.MaxPendingUpdates,
		done:              make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.writeLoop()
	return p
}

// Send serializes a message and queues it for this peer only.
func (p *Peer) Send(msg *messages.Message) error {
	frame, err := messages.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %v", err)
	}
	p.QueueControl(0, frame)
	return nil
}

// QueueControl queues a frame that must not be dropped or reordered.
// A left frame purges any pending updates for the same player so no
// update can be delivered after it.
func (p *Peer) QueueControl(playerID uint32, frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if playerID != 0 {
		filtered := p.queue[:0]
		for _, item := range p.queue {
			if item.kind == outboundKindUpdate && item.playerID == playerID {
				p.pendingUpdates--
				continue
			}
			filtered = append(filtered, item)
		}
		p.queue = filtered
	}

	p.queue = append(p.queue, outbound{kind: outboundKindControl, playerID: playerID, frame: frame})
	p.cond.Signal()
}

// QueueUpdate queues an update frame for a player. A newer update
// supersedes a pending one for the same player in place; when the
// pending update budget is exhausted, the oldest pending update is
// dropped to make room.
func (p *Peer) QueueUpdate(playerID uint32, frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	for i, item := range p.queue {
		if item.kind == outboundKindUpdate && item.playerID == playerID {
			p.queue[i].frame = frame
			return
		}
	}

	if p.pendingUpdates >= p.maxPendingUpdates {
		for i, item := range p.queue {
			if item.kind == outboundKindUpdate {
				p.queue = append(p.queue[:i], p.queue[i+1:]...)
				p.pendingUpdates--
				break
			}
		}
	}

	p.queue = append(p.queue, outbound{kind: outboundKindUpdate, playerID: playerID, frame: frame})
	p.pendingUpdates++
	p.cond.Signal()
}

func (p *Peer) writeLoop() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		item := p.queue[0]
		p.queue = p.queue[1:]
		if item.kind == outboundKindUpdate {
			p.pendingUpdates--
		}
		p.mu.Unlock()

		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			log.Debug("Failed to set write deadline: %v", err)
			p.Close()
			return
		}
		if _, err := p.conn.Write(item.frame); err != nil {
			log.Debug("Failed to write frame to peer: %v", err)
			p.Close()
			return
		}
	}
}

// Close shuts down the peer's writer and closes the connection. It is
// safe to call more than once and from any goroutine.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.cond.Broadcast()
		p.mu.Unlock()
		p.conn.Close()
		close(p.done)
	})
}

// Done is closed once the peer has shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}
