package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a node connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Conn is the minimal websocket surface the node reader needs. Production
// connections are gorilla websockets; tests substitute scripted ones.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// DialFunc opens the event stream to a node.
type DialFunc func(ctx context.Context, desc NodeDescriptor) (Conn, error)

// newGorillaDialer builds the production dialer. The node protocol wants the
// bot user id and a client name in the handshake headers.
func newGorillaDialer(userID, clientName string) DialFunc {
	return func(ctx context.Context, desc NodeDescriptor) (Conn, error) {
		header := http.Header{}
		header.Set("Authorization", desc.Password)
		header.Set("User-Id", userID)
		header.Set("Client-Name", clientName)

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		c, resp, err := dialer.DialContext(ctx, desc.WebsocketURL(), header)
		if err != nil {
			reqErr := &RequestError{NodeID: desc.Identifier, Op: "websocket dial", Message: err.Error()}
			if resp != nil {
				reqErr.Status = resp.StatusCode
			}
			return nil, reqErr
		}
		return &gorillaConn{conn: c}, nil
	}
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, p, err := g.conn.ReadMessage()
	return p, err
}

func (g *gorillaConn) Close() error { return g.conn.Close() }

// Node is one audio node connection: the websocket event stream plus the
// REST control surface. Nodes are created and owned by the Manager.
type Node struct {
	desc      NodeDescriptor
	rest      *restClient
	log       zerolog.Logger
	handshake time.Duration

	emit   func(Event)
	onDown func(nodeID string, err error)

	mu        sync.RWMutex
	status    Status
	sessionID string
	lastErr   error
	dials     int
	conn      Conn
	closing   bool
	players   map[string]struct{}
}

func newNode(desc NodeDescriptor, httpClient *http.Client, handshake time.Duration, emit func(Event), onDown func(string, error), log zerolog.Logger) *Node {
	return &Node{
		desc:      desc,
		rest:      newRestClient(desc, httpClient),
		log:       log.With().Str("node", desc.Identifier).Logger(),
		handshake: handshake,
		emit:      emit,
		onDown:    onDown,
		players:   make(map[string]struct{}),
	}
}

// ID returns the node's configured identifier.
func (n *Node) ID() string { return n.desc.Identifier }

// Status returns the node's connection status.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// LastError returns the most recent connection or handshake error.
func (n *Node) LastError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastErr
}

// Dials returns how many connection attempts this node has seen.
func (n *Node) Dials() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dials
}

// PlayerGuilds lists the guilds this node currently hosts a player for.
func (n *Node) PlayerGuilds() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.players))
	for guildID := range n.players {
		out = append(out, guildID)
	}
	return out
}

func (n *Node) trackPlayer(guildID string) {
	n.mu.Lock()
	n.players[guildID] = struct{}{}
	n.mu.Unlock()
}

func (n *Node) forgetPlayer(guildID string) {
	n.mu.Lock()
	delete(n.players, guildID)
	n.mu.Unlock()
}

type readyInfo struct {
	sessionID string
	resumed   bool
	err       error
}

// connect performs a single connection attempt: dial, then wait for the
// node's ready op before declaring the connection usable.
func (n *Node) connect(ctx context.Context, dial DialFunc) error {
	n.mu.Lock()
	if n.status == StatusConnected {
		n.mu.Unlock()
		return nil
	}
	n.status = StatusConnecting
	n.closing = false
	n.dials++
	n.mu.Unlock()

	conn, err := dial(ctx, n.desc)
	if err != nil {
		n.setDisconnected(err)
		return err
	}

	readyCh := make(chan readyInfo, 1)
	go n.readLoop(conn, readyCh)

	select {
	case info := <-readyCh:
		if info.err != nil {
			conn.Close()
			reqErr := &RequestError{NodeID: n.desc.Identifier, Op: "handshake", Message: info.err.Error()}
			n.setDisconnected(reqErr)
			return reqErr
		}
		n.mu.Lock()
		n.conn = conn
		n.sessionID = info.sessionID
		n.status = StatusConnected
		n.lastErr = nil
		// A fresh node session starts with no guild players.
		n.players = make(map[string]struct{})
		n.mu.Unlock()
		n.log.Info().Bool("resumed", info.resumed).Msg("node connected")
		return nil
	case <-ctx.Done():
		conn.Close()
		n.setDisconnected(ctx.Err())
		return ctx.Err()
	case <-time.After(n.handshake):
		conn.Close()
		reqErr := &RequestError{NodeID: n.desc.Identifier, Op: "handshake", Message: "timed out waiting for ready op"}
		n.setDisconnected(reqErr)
		return reqErr
	}
}

func (n *Node) setDisconnected(err error) {
	n.mu.Lock()
	n.status = StatusDisconnected
	n.lastErr = err
	n.conn = nil
	n.mu.Unlock()
}

// noteError records a connection error without changing the node's status.
func (n *Node) noteError(err error) {
	n.mu.Lock()
	if err != nil {
		n.lastErr = err
	}
	n.mu.Unlock()
}

// markFailed flags the node as out of rotation until a reset.
func (n *Node) markFailed(err error) {
	n.mu.Lock()
	n.status = StatusFailed
	if err != nil {
		n.lastErr = err
	}
	n.mu.Unlock()
}

// resetFailed puts a failed node back into rotation.
func (n *Node) resetFailed() {
	n.mu.Lock()
	if n.status == StatusFailed {
		n.status = StatusDisconnected
	}
	n.mu.Unlock()
}

// close tears the websocket down without reporting a disconnect.
func (n *Node) close() {
	n.mu.Lock()
	n.closing = true
	conn := n.conn
	n.conn = nil
	if n.status == StatusConnected || n.status == StatusConnecting {
		n.status = StatusDisconnected
	}
	n.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// readLoop pumps frames off one websocket connection. Before the ready op
// arrives it only feeds the handshake; afterwards every frame is decoded and
// emitted. A read error after ready reports the node down unless the close
// was deliberate.
func (n *Node) readLoop(conn Conn, readyCh chan<- readyInfo) {
	gotReady := false
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !gotReady {
				readyCh <- readyInfo{err: err}
				return
			}
			n.mu.Lock()
			closing := n.closing
			if n.conn == conn {
				n.conn = nil
				if !closing {
					n.status = StatusDisconnected
					n.lastErr = err
				}
			}
			n.mu.Unlock()
			if !closing && n.onDown != nil {
				n.onDown(n.desc.Identifier, err)
			}
			return
		}

		if !gotReady {
			var msg wsMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				n.log.Warn().Err(err).Msg("undecodable frame before ready")
				continue
			}
			if msg.Op == "ready" {
				gotReady = true
				readyCh <- readyInfo{sessionID: msg.SessionID, resumed: msg.Resumed}
			}
			continue
		}

		n.handleMessage(data)
	}
}

type wsMessage struct {
	Op          string       `json:"op"`
	Type        string       `json:"type"`
	GuildID     string       `json:"guildId"`
	SessionID   string       `json:"sessionId"`
	Resumed     bool         `json:"resumed"`
	State       *playerState `json:"state"`
	Track       *Track       `json:"track"`
	Reason      string       `json:"reason"`
	Exception   *wsException `json:"exception"`
	ThresholdMs int64        `json:"thresholdMs"`
	Code        int          `json:"code"`
	ByRemote    bool         `json:"byRemote"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

type wsException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func (n *Node) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		n.log.Warn().Err(err).Msg("undecodable node frame")
		return
	}

	switch msg.Op {
	case "ready":
		n.mu.Lock()
		n.sessionID = msg.SessionID
		n.mu.Unlock()
		n.log.Info().Bool("resumed", msg.Resumed).Msg("node session refreshed")
	case "playerUpdate":
		if msg.State == nil {
			return
		}
		n.emit(PlayerUpdateEvent{
			GuildID:   msg.GuildID,
			Position:  time.Duration(msg.State.Position) * time.Millisecond,
			Connected: msg.State.Connected,
			Time:      time.UnixMilli(msg.State.Time),
		})
	case "stats":
		n.log.Debug().Msg("node stats frame")
	case "event":
		n.handleEvent(msg)
	default:
		n.log.Debug().Str("op", msg.Op).Msg("unhandled node op")
	}
}

func (n *Node) handleEvent(msg wsMessage) {
	var track Track
	if msg.Track != nil {
		track = *msg.Track
	}

	switch msg.Type {
	case "TrackStartEvent":
		n.emit(TrackStartEvent{GuildID: msg.GuildID, Track: track})
	case "TrackEndEvent":
		n.emit(TrackEndEvent{GuildID: msg.GuildID, Track: track, Reason: EndReason(msg.Reason)})
	case "TrackExceptionEvent":
		ev := TrackExceptionEvent{GuildID: msg.GuildID, Track: track}
		if msg.Exception != nil {
			ev.Message = msg.Exception.Message
			ev.Severity = msg.Exception.Severity
		}
		n.emit(ev)
	case "TrackStuckEvent":
		n.emit(TrackStuckEvent{
			GuildID:   msg.GuildID,
			Track:     track,
			Threshold: time.Duration(msg.ThresholdMs) * time.Millisecond,
		})
	case "WebSocketClosedEvent":
		n.emit(WebSocketClosedEvent{
			GuildID:  msg.GuildID,
			Code:     msg.Code,
			Reason:   msg.Reason,
			ByRemote: msg.ByRemote,
		})
	default:
		n.log.Debug().Str("type", msg.Type).Msg("unhandled node event")
	}
}
