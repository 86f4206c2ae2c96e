package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRestNode(t *testing.T, handler http.Handler) *Node {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	desc := NodeDescriptor{Identifier: "rest", Host: u.Hostname(), Port: port, Password: "pw"}
	n := newNode(desc, srv.Client(), time.Second, func(Event) {}, nil, zerolog.Nop())
	n.mu.Lock()
	n.sessionID = "sess-1"
	n.mu.Unlock()
	return n
}

func TestLoadTracks(t *testing.T) {
	trackJSON := `{"encoded":"QAAA","info":{"identifier":"abc","title":"Song","author":"Artist","length":180000}}`

	tests := []struct {
		name      string
		body      string
		status    int
		wantCount int
		wantErr   error
	}{
		{
			name:      "single track",
			body:      `{"loadType":"track","data":` + trackJSON + `}`,
			wantCount: 1,
		},
		{
			name:      "search results",
			body:      `{"loadType":"search","data":[` + trackJSON + `,` + trackJSON + `]}`,
			wantCount: 2,
		},
		{
			name:      "playlist",
			body:      `{"loadType":"playlist","data":{"info":{"name":"mix"},"tracks":[` + trackJSON + `]}}`,
			wantCount: 1,
		},
		{
			name:    "empty",
			body:    `{"loadType":"empty","data":{}}`,
			wantErr: ErrNoMatches,
		},
		{
			name:    "load error",
			body:    `{"loadType":"error","data":{"message":"video is private","severity":"common"}}`,
			wantErr: ErrLoadFailed,
		},
		{
			name:    "http error",
			body:    `{"message":"unauthorized"}`,
			status:  http.StatusUnauthorized,
			wantErr: ErrNodeRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newRestNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v4/loadtracks", r.URL.Path)
				assert.Equal(t, "pw", r.Header.Get("Authorization"))
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			}))

			tracks, err := n.LoadTracks(context.Background(), "ytsearch:test")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tracks, tt.wantCount)
		})
	}
}

func TestPlaySendsFullPlayerUpdate(t *testing.T) {
	var got playerUpdateRequest
	var path string
	n := newRestNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))

	track := Track{Encoded: "QAAA", Info: TrackInfo{Title: "Song"}}
	err := n.Play(context.Background(), "guild-1", track, 42*time.Second, 30, false)
	require.NoError(t, err)

	assert.Equal(t, "/v4/sessions/sess-1/players/guild-1", path)
	require.NotNil(t, got.Track)
	require.NotNil(t, got.Track.Encoded)
	assert.Equal(t, "QAAA", *got.Track.Encoded)
	require.NotNil(t, got.Position)
	assert.Equal(t, int64(42000), *got.Position)
	require.NotNil(t, got.Volume)
	assert.Equal(t, 30, *got.Volume)
	require.NotNil(t, got.Paused)
	assert.False(t, *got.Paused)
}

func TestStopSendsNullTrack(t *testing.T) {
	var raw string
	n := newRestNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		buf := make([]byte, 512)
		for {
			n, err := r.Body.Read(buf)
			sb.Write(buf[:n])
			if err != nil {
				break
			}
		}
		raw = sb.String()
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, n.Stop(context.Background(), "guild-1"))
	assert.Contains(t, raw, `"track":{"encoded":null}`)
	assert.NotContains(t, raw, `"volume"`)
}

func TestDestroyToleratesMissingPlayer(t *testing.T) {
	n := newRestNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"player not found"}`))
	}))

	assert.NoError(t, n.Destroy(context.Background(), "guild-1"))
}

func TestPlayerOpsRequireSession(t *testing.T) {
	desc := NodeDescriptor{Identifier: "cold", Host: "localhost", Port: 2333, Password: "pw"}
	n := newNode(desc, nil, time.Second, func(Event) {}, nil, zerolog.Nop())

	err := n.Pause(context.Background(), "guild-1", true)
	assert.ErrorIs(t, err, ErrNodeRequest)
}
