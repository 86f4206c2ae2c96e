package lavalink

import (
	"errors"
	"fmt"
)

// Node availability errors
var (
	ErrNoActiveNode   = errors.New("lavalink: no active node")
	ErrAllNodesFailed = errors.New("lavalink: all nodes failed")
	ErrUnknownNode    = errors.New("lavalink: unknown node")
	ErrManagerClosed  = errors.New("lavalink: manager closed")
)

// Track resolution errors
var (
	ErrNoMatches  = errors.New("lavalink: no matching tracks")
	ErrLoadFailed = errors.New("lavalink: track load failed")
)

// ErrNodeRequest is the transient-failure class: a single REST or websocket
// operation against a node failed. errors.Is(err, ErrNodeRequest) matches
// every RequestError.
var ErrNodeRequest = errors.New("lavalink: node request failed")

// RequestError carries the node and operation a failed request belonged to.
type RequestError struct {
	NodeID  string
	Op      string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("lavalink: node %s: %s: status %d: %s", e.NodeID, e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("lavalink: node %s: %s: %s", e.NodeID, e.Op, e.Message)
}

func (e *RequestError) Unwrap() error { return ErrNodeRequest }
