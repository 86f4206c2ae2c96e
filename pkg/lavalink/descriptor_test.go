package lavalink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
		check   func(t *testing.T, descs []NodeDescriptor)
	}{
		{
			name: "host and port form",
			json: `[{"identifier":"main","host":"10.0.0.5","port":2333,"password":"pw","secure":false}]`,
			check: func(t *testing.T, descs []NodeDescriptor) {
				require.Len(t, descs, 1)
				assert.Equal(t, "main", descs[0].Identifier)
				assert.Equal(t, "ws://10.0.0.5:2333/v4/websocket", descs[0].WebsocketURL())
				assert.Equal(t, "http://10.0.0.5:2333", descs[0].RestBaseURL())
			},
		},
		{
			name: "uri form with secure scheme",
			json: `[{"identifier":"edge","uri":"wss://lava.example.com:8443","password":"pw"}]`,
			check: func(t *testing.T, descs []NodeDescriptor) {
				require.Len(t, descs, 1)
				assert.True(t, descs[0].Secure)
				assert.Equal(t, "lava.example.com", descs[0].Host)
				assert.Equal(t, 8443, descs[0].Port)
				assert.Equal(t, "https://lava.example.com:8443", descs[0].RestBaseURL())
			},
		},
		{
			name: "uri without port defaults by scheme",
			json: `[{"identifier":"edge","uri":"https://lava.example.com","password":"pw"}]`,
			check: func(t *testing.T, descs []NodeDescriptor) {
				assert.Equal(t, 443, descs[0].Port)
			},
		},
		{
			name: "priority order preserved",
			json: `[{"identifier":"a","host":"h1","port":2333},{"identifier":"b","host":"h2","port":2333}]`,
			check: func(t *testing.T, descs []NodeDescriptor) {
				require.Len(t, descs, 2)
				assert.Equal(t, "a", descs[0].Identifier)
				assert.Equal(t, "b", descs[1].Identifier)
			},
		},
		{
			name:    "duplicate identifiers rejected",
			json:    `[{"identifier":"a","host":"h1","port":2333},{"identifier":"a","host":"h2","port":2333}]`,
			wantErr: true,
		},
		{
			name:    "missing identifier rejected",
			json:    `[{"host":"h1","port":2333}]`,
			wantErr: true,
		},
		{
			name:    "port out of range rejected",
			json:    `[{"identifier":"a","host":"h1","port":70000}]`,
			wantErr: true,
		},
		{
			name:    "empty list rejected",
			json:    `[]`,
			wantErr: true,
		},
		{
			name:    "unsupported uri scheme rejected",
			json:    `[{"identifier":"a","uri":"ftp://h1:2333"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descs, err := ParseDescriptors([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, descs)
		})
	}
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "https://youtu.be/abc", SearchQuery("https://youtu.be/abc"))
	assert.Equal(t, "ytsearch:never gonna give you up", SearchQuery("never gonna give you up"))
}
