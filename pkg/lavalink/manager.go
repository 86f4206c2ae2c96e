package lavalink

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBackoffBase      = 500 * time.Millisecond
	defaultBackoffMax       = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	playerCleanupTimeout    = 3 * time.Second
	eventBufferSize         = 256
)

// ManagerOptions tunes the node connection manager.
type ManagerOptions struct {
	// UserID is the bot user id sent in the node handshake.
	UserID string
	// ClientName identifies this client to the node.
	ClientName string
	// RetryBudget is the number of retries per candidate on top of the
	// first attempt. Zero means exactly one attempt per candidate.
	RetryBudget int
	// BackoffBase/BackoffMax bound the exponential sleep between attempts.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// Dial overrides the websocket dialer. Nil selects the production
	// gorilla dialer.
	Dial DialFunc
	// HTTPClient is shared by the REST clients of all nodes.
	HTTPClient *http.Client
	// HandshakeTimeout bounds the wait for a node's ready op.
	HandshakeTimeout time.Duration

	Logger zerolog.Logger
}

// Manager owns the configured set of audio nodes, keeps at most one of them
// active, and fails over along the descriptor priority order when the active
// node is lost. The active node is a versioned reference cell: every swap
// bumps the version so readers can tell a reconnect happened.
type Manager struct {
	opts  ManagerOptions
	dial  DialFunc
	log   zerolog.Logger
	nodes []*Node

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	// connectMu serializes connect walks so concurrent failovers cannot
	// interleave.
	connectMu sync.Mutex

	mu      sync.RWMutex
	active  *Node
	version uint64
	closed  bool
}

// NewManager validates the descriptors and builds a manager. It does not
// dial anything; call Connect for that.
func NewManager(descs []NodeDescriptor, opts ManagerOptions) (*Manager, error) {
	if len(descs) == 0 {
		return nil, ErrUnknownNode
	}
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[d.Identifier]; dup {
			return nil, &RequestError{NodeID: d.Identifier, Op: "configure", Message: "duplicate node identifier"}
		}
		seen[d.Identifier] = struct{}{}
	}

	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	}
	if opts.ClientName == "" {
		opts.ClientName = "cadenza/1.0"
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:   opts,
		log:    opts.Logger.With().Str("component", "lavalink").Logger(),
		events: make(chan Event, eventBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	m.dial = opts.Dial
	if m.dial == nil {
		m.dial = newGorillaDialer(opts.UserID, opts.ClientName)
	}

	for _, d := range descs {
		m.nodes = append(m.nodes, newNode(d, opts.HTTPClient, opts.HandshakeTimeout, m.emit, m.handleNodeDown, m.log))
	}
	return m, nil
}

// Events returns the stream of node and playback events. The channel is
// never closed; consumers select against their own context.
func (m *Manager) Events() <-chan Event { return m.events }

// Nodes returns a snapshot of all nodes in priority order.
func (m *Manager) Nodes() []*Node {
	out := make([]*Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// Active returns the active node, or ErrNoActiveNode when the manager has
// none to offer.
func (m *Manager) Active() (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.active == nil {
		return nil, ErrNoActiveNode
	}
	return m.active, nil
}

// ActiveVersion returns the generation counter of the active-node cell. It
// increases on every swap, including swaps to nil.
func (m *Manager) ActiveVersion() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Connect establishes the first active node, walking candidates in priority
// order. Already connected managers return immediately.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if _, err := m.Active(); err == nil {
		return nil
	}
	return m.connectWalk(ctx)
}

// connectWalk tries every non-failed candidate in priority order. Caller
// holds connectMu.
func (m *Manager) connectWalk(ctx context.Context) error {
	for _, node := range m.nodes {
		if node.Status() == StatusFailed {
			continue
		}
		if err := m.connectNode(ctx, node); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			node.markFailed(err)
			m.log.Warn().Err(err).Str("node", node.ID()).Msg("node candidate exhausted")
			m.emit(NodeFailedEvent{NodeID: node.ID(), Attempts: m.opts.RetryBudget + 1, Err: err})
			continue
		}
		m.setActive(node)
		m.emit(NodeConnectedEvent{NodeID: node.ID()})
		return nil
	}
	m.log.Error().Msg("all audio nodes exhausted")
	m.emit(NodesExhaustedEvent{})
	return ErrAllNodesFailed
}

// connectNode runs the bounded retry state machine for one candidate:
// budget+1 attempts, exponential backoff slept only between attempts.
func (m *Manager) connectNode(ctx context.Context, node *Node) error {
	delay := m.opts.BackoffBase
	var lastErr error

	for attempt := 0; attempt <= m.opts.RetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			case <-m.ctx.Done():
				return ErrManagerClosed
			}
			delay *= 2
			if delay > m.opts.BackoffMax {
				delay = m.opts.BackoffMax
			}
		}

		err := node.connect(ctx, m.dial)
		if err == nil {
			return nil
		}
		lastErr = err
		m.log.Warn().Err(err).Str("node", node.ID()).Int("attempt", attempt+1).Msg("node connect attempt failed")
	}
	return lastErr
}

func (m *Manager) setActive(node *Node) {
	m.mu.Lock()
	m.active = node
	m.version++
	m.mu.Unlock()
	if node != nil {
		m.log.Info().Str("node", node.ID()).Msg("active node set")
	}
}

func (m *Manager) clearActive(node *Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != node {
		return false
	}
	m.active = nil
	m.version++
	return true
}

// handleNodeDown is the read-loop callback for unsolicited websocket drops.
func (m *Manager) handleNodeDown(nodeID string, err error) {
	m.ReportDisconnect(nodeID, err)
}

// ReportDisconnect handles an unsolicited connection drop. The node goes
// back to disconnected, not failed, so the re-selection walk gives it a
// fresh retry budget; only exhausting that budget takes it out of rotation.
// Losing the active node emits NodeDisconnectedEvent and triggers
// re-selection in the background; reports about non-active nodes only
// update bookkeeping.
func (m *Manager) ReportDisconnect(nodeID string, cause error) {
	node := m.find(nodeID)
	if node == nil {
		return
	}

	node.close()
	node.noteError(cause)

	if !m.clearActive(node) {
		return
	}

	m.log.Warn().Err(cause).Str("node", nodeID).Msg("active node lost")
	m.emit(NodeDisconnectedEvent{NodeID: nodeID, Err: cause})

	go func() {
		m.connectMu.Lock()
		defer m.connectMu.Unlock()
		if _, err := m.Active(); err == nil {
			return
		}
		if m.ctx.Err() != nil {
			return
		}
		if err := m.connectWalk(m.ctx); err != nil {
			m.log.Error().Err(err).Msg("failover found no usable node")
		}
	}()
}

// SwitchTo connects the named node (clearing any failed mark) and makes it
// active, dropping the previous one. This is the manual recovery path.
func (m *Manager) SwitchTo(ctx context.Context, nodeID string) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	node := m.find(nodeID)
	if node == nil {
		return ErrUnknownNode
	}

	m.mu.RLock()
	current := m.active
	m.mu.RUnlock()
	if current == node && node.Status() == StatusConnected {
		return nil
	}

	node.resetFailed()
	if err := m.connectNode(ctx, node); err != nil {
		node.markFailed(err)
		m.emit(NodeFailedEvent{NodeID: node.ID(), Attempts: m.opts.RetryBudget + 1, Err: err})
		return err
	}

	if current != nil && current != node {
		m.destroyPlayers(current)
		current.close()
		m.clearActive(current)
		m.emit(NodeDisconnectedEvent{NodeID: current.ID()})
	}
	m.setActive(node)
	m.emit(NodeConnectedEvent{NodeID: node.ID()})
	return nil
}

// destroyPlayers clears a node's remaining guild players over REST before
// the node is abandoned. Best effort: a player the node already lost is
// fine, failures are only logged.
func (m *Manager) destroyPlayers(node *Node) {
	for _, guildID := range node.PlayerGuilds() {
		ctx, cancel := context.WithTimeout(m.ctx, playerCleanupTimeout)
		err := node.Destroy(ctx, guildID)
		cancel()
		if err != nil {
			m.log.Warn().Err(err).Str("node", node.ID()).Str("guild", guildID).Msg("failed to destroy player on abandoned node")
		}
	}
}

// Reset clears failed marks on every node so the next Connect retries the
// full candidate list.
func (m *Manager) Reset() {
	for _, node := range m.nodes {
		node.resetFailed()
	}
}

func (m *Manager) find(nodeID string) *Node {
	for _, node := range m.nodes {
		if node.ID() == nodeID {
			return node
		}
	}
	return nil
}

// emit is non-blocking: a full event buffer drops the event with a warning
// rather than stalling a node's read loop.
func (m *Manager) emit(ev Event) {
	select {
	case <-m.ctx.Done():
	case m.events <- ev:
	default:
		m.log.Warn().Type("event", ev).Msg("event buffer full, dropping")
	}
}

// Close tears down every node connection. The events channel stays open but
// goes quiet.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.active = nil
	m.version++
	m.mu.Unlock()

	m.cancel()
	for _, node := range m.nodes {
		node.close()
	}
}
