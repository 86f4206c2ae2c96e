package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type restClient struct {
	base     string
	password string
	http     *http.Client
	nodeID   string
}

func newRestClient(desc NodeDescriptor, client *http.Client) *restClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &restClient{
		base:     desc.RestBaseURL(),
		password: desc.Password,
		http:     client,
		nodeID:   desc.Identifier,
	}
}

type nodeErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RequestError{NodeID: c.nodeID, Op: op, Message: "encode request: " + err.Error()}
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &RequestError{NodeID: c.nodeID, Op: op, Message: err.Error()}
	}
	req.Header.Set("Authorization", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{NodeID: c.nodeID, Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var nodeErr nodeErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&nodeErr)
		msg := nodeErr.Message
		if msg == "" {
			msg = nodeErr.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return &RequestError{NodeID: c.nodeID, Op: op, Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RequestError{NodeID: c.nodeID, Op: op, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

// VoiceUpdate carries the chat platform's voice credentials for one guild,
// forwarded to the node so it can join the voice server.
type VoiceUpdate struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type playerTrack struct {
	Encoded *string `json:"encoded"`
}

// playerUpdateRequest is the PATCH body for a guild player. Pointer fields
// stay out of the payload when unset so partial updates remain partial.
type playerUpdateRequest struct {
	Track    *playerTrack `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Voice    *VoiceUpdate `json:"voice,omitempty"`
}

func (n *Node) playerPath(guildID string) (string, error) {
	n.mu.RLock()
	sess := n.sessionID
	n.mu.RUnlock()
	if sess == "" {
		return "", &RequestError{NodeID: n.ID(), Op: "player update", Message: "node session not established"}
	}
	return fmt.Sprintf("/v4/sessions/%s/players/%s", sess, guildID), nil
}

// Play starts (or replaces) the guild's track at the given position.
func (n *Node) Play(ctx context.Context, guildID string, track Track, position time.Duration, volume int, paused bool) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	encoded := track.Encoded
	pos := position.Milliseconds()
	body := playerUpdateRequest{
		Track:    &playerTrack{Encoded: &encoded},
		Position: &pos,
		Volume:   &volume,
		Paused:   &paused,
	}
	if err := n.rest.do(ctx, http.MethodPatch, path+"?noReplace=false", body, nil); err != nil {
		return err
	}
	n.trackPlayer(guildID)
	return nil
}

// Stop clears the guild's current track on the node.
func (n *Node) Stop(ctx context.Context, guildID string) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	body := playerUpdateRequest{Track: &playerTrack{Encoded: nil}}
	return n.rest.do(ctx, http.MethodPatch, path, body, nil)
}

// Pause sets or clears the guild player's paused flag.
func (n *Node) Pause(ctx context.Context, guildID string, paused bool) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	body := playerUpdateRequest{Paused: &paused}
	return n.rest.do(ctx, http.MethodPatch, path, body, nil)
}

// Seek moves the guild player to an absolute position in the current track.
func (n *Node) Seek(ctx context.Context, guildID string, position time.Duration) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	pos := position.Milliseconds()
	body := playerUpdateRequest{Position: &pos}
	return n.rest.do(ctx, http.MethodPatch, path, body, nil)
}

// SetVolume applies a 0-100 volume to the guild player.
func (n *Node) SetVolume(ctx context.Context, guildID string, volume int) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	body := playerUpdateRequest{Volume: &volume}
	return n.rest.do(ctx, http.MethodPatch, path, body, nil)
}

// UpdateVoice forwards fresh voice credentials to the guild player.
func (n *Node) UpdateVoice(ctx context.Context, guildID string, voice VoiceUpdate) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	body := playerUpdateRequest{Voice: &voice}
	return n.rest.do(ctx, http.MethodPatch, path, body, nil)
}

// Destroy removes the guild player from the node. A missing player counts
// as destroyed.
func (n *Node) Destroy(ctx context.Context, guildID string) error {
	path, err := n.playerPath(guildID)
	if err != nil {
		return err
	}
	err = n.rest.do(ctx, http.MethodDelete, path, nil, nil)
	var reqErr *RequestError
	if err != nil && errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
		err = nil
	}
	if err == nil {
		n.forgetPlayer(guildID)
	}
	return err
}

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

// LoadTracks asks the node to resolve an identifier (URL or search query,
// see SearchQuery) into playable tracks.
func (n *Node) LoadTracks(ctx context.Context, identifier string) ([]Track, error) {
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	var result loadResult
	if err := n.rest.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	switch result.LoadType {
	case "track":
		var t Track
		if err := json.Unmarshal(result.Data, &t); err != nil {
			return nil, fmt.Errorf("%w: decode track: %v", ErrLoadFailed, err)
		}
		return []Track{t}, nil
	case "playlist":
		var pl playlistData
		if err := json.Unmarshal(result.Data, &pl); err != nil {
			return nil, fmt.Errorf("%w: decode playlist: %v", ErrLoadFailed, err)
		}
		if len(pl.Tracks) == 0 {
			return nil, ErrNoMatches
		}
		return pl.Tracks, nil
	case "search":
		var tracks []Track
		if err := json.Unmarshal(result.Data, &tracks); err != nil {
			return nil, fmt.Errorf("%w: decode search results: %v", ErrLoadFailed, err)
		}
		if len(tracks) == 0 {
			return nil, ErrNoMatches
		}
		return tracks, nil
	case "empty":
		return nil, ErrNoMatches
	case "error":
		var ex wsException
		_ = json.Unmarshal(result.Data, &ex)
		if ex.Message == "" {
			ex.Message = "node reported a load error"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, ex.Message)
	default:
		return nil, fmt.Errorf("%w: unknown load type %q", ErrLoadFailed, result.LoadType)
	}
}
