package lavalink

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NodeDescriptor identifies one audio node. Descriptor order is priority
// order: the first descriptor handed to the manager is the primary node,
// the rest are fallbacks in sequence.
type NodeDescriptor struct {
	Identifier string
	Host       string
	Port       int
	Password   string
	Secure     bool
}

// descriptorJSON is the accepted wire shape. Either host+port or a full uri
// may be given; uri wins when both are present.
type descriptorJSON struct {
	Identifier string `json:"identifier"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Password   string `json:"password"`
	Secure     bool   `json:"secure"`
	URI        string `json:"uri"`
}

func (d *NodeDescriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Identifier = strings.TrimSpace(raw.Identifier)
	d.Host = strings.TrimSpace(raw.Host)
	d.Port = raw.Port
	d.Password = raw.Password
	d.Secure = raw.Secure

	if raw.URI != "" {
		u, err := url.Parse(raw.URI)
		if err != nil {
			return fmt.Errorf("node %q: invalid uri: %w", raw.Identifier, err)
		}
		switch u.Scheme {
		case "https", "wss":
			d.Secure = true
		case "http", "ws":
			d.Secure = false
		default:
			return fmt.Errorf("node %q: unsupported uri scheme %q", raw.Identifier, u.Scheme)
		}
		d.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("node %q: invalid uri port: %w", raw.Identifier, err)
			}
			d.Port = port
		} else if d.Secure {
			d.Port = 443
		} else {
			d.Port = 2333
		}
	}

	return nil
}

// Validate checks the descriptor is complete enough to dial.
func (d NodeDescriptor) Validate() error {
	if d.Identifier == "" {
		return fmt.Errorf("node descriptor: identifier must not be empty")
	}
	if d.Host == "" {
		return fmt.Errorf("node %q: host must not be empty", d.Identifier)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("node %q: port %d out of range (1-65535)", d.Identifier, d.Port)
	}
	return nil
}

// RestBaseURL returns the node's REST root, e.g. http://host:port.
func (d NodeDescriptor) RestBaseURL() string {
	scheme := "http"
	if d.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, d.Host, d.Port)
}

// WebsocketURL returns the node's event stream endpoint.
func (d NodeDescriptor) WebsocketURL() string {
	scheme := "ws"
	if d.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, d.Host, d.Port)
}

// ParseDescriptors decodes a JSON array of node descriptors and validates
// each entry plus identifier uniqueness across the set.
func ParseDescriptors(data []byte) ([]NodeDescriptor, error) {
	var descs []NodeDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parse node descriptors: %w", err)
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("parse node descriptors: empty node list")
	}
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[d.Identifier]; dup {
			return nil, fmt.Errorf("parse node descriptors: duplicate identifier %q", d.Identifier)
		}
		seen[d.Identifier] = struct{}{}
	}
	return descs, nil
}
