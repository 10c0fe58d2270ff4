package projection

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/semquery/errors"
)

// Substrate distributes packets to remote cluster members and collects their
// results. Its queues and maps are synchronized by the substrate itself.
type Substrate interface {
	// Submit hands a packet to the cluster.
	Submit(ctx context.Context, packet Packet) error

	// Await blocks until the result of a submitted packet is available.
	Await(ctx context.Context, packet Packet) (*PacketResult, error)

	// Members returns the number of remote members currently available.
	Members(ctx context.Context) int
}

// PacketHandler processes a packet on a cluster member.
type PacketHandler func(ctx context.Context, packet Packet) PacketResult

// MemorySubstrate runs packets on in-process goroutines that stand in for
// remote members.
type MemorySubstrate struct {
	members int
	handler PacketHandler

	mu        sync.Mutex
	submitted []Packet
	results   map[string]*PacketResult
	ready     map[string]chan struct{}
}

// NewMemorySubstrate creates a substrate reporting members remote members,
// each of which answers with handler.
func NewMemorySubstrate(members int, handler PacketHandler) *MemorySubstrate {
	return &MemorySubstrate{
		members: members,
		handler: handler,
		results: make(map[string]*PacketResult),
		ready:   make(map[string]chan struct{}),
	}
}

func (m *MemorySubstrate) readyChan(key string) chan struct{} {
	ch, ok := m.ready[key]
	if !ok {
		ch = make(chan struct{})
		m.ready[key] = ch
	}
	return ch
}

// Submit implements Substrate.
func (m *MemorySubstrate) Submit(ctx context.Context, packet Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.submitted = append(m.submitted, packet)
	ready := m.readyChan(packet.Key())
	m.mu.Unlock()

	go func() {
		result := m.handler(context.WithoutCancel(ctx), packet)
		m.mu.Lock()
		m.results[packet.Key()] = &result
		m.mu.Unlock()
		close(ready)
	}()
	return nil
}

// Await implements Substrate.
func (m *MemorySubstrate) Await(ctx context.Context, packet Packet) (*PacketResult, error) {
	m.mu.Lock()
	ready := m.readyChan(packet.Key())
	m.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, errors.WrapTransient(
			fmt.Errorf("packet %s: %w", packet.Key(), ctx.Err()), "MemorySubstrate", "Await", "wait for result")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[packet.Key()], nil
}

// Members implements Substrate.
func (m *MemorySubstrate) Members(context.Context) int { return m.members }

// Submitted returns the packets submitted so far.
func (m *MemorySubstrate) Submitted() []Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Packet(nil), m.submitted...)
}
