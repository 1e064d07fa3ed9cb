// Package ice assembles the STUN/TURN server list handed to both parties
// of an accepted call. The server never participates in media transport;
// it only distributes this configuration.
package ice

import "github.com/pion/webrtc/v4"

// Provider computes the ICE server list. The STUN pair is fixed; a TURN
// entry is appended when configured. Username and credential are static
// configuration values.
type Provider struct {
	turnURL        string
	turnUsername   string
	turnCredential string
}

func NewProvider(turnURL, username, credential string) *Provider {
	return &Provider{
		turnURL:        turnURL,
		turnUsername:   username,
		turnCredential: credential,
	}
}

// Servers returns a fresh list on every call so later configuration
// strategies (e.g. time-limited TURN credentials) can slot in without
// callers holding a stale copy.
func (p *Provider) Servers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}
	if p.turnURL != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{p.turnURL},
			Username:   p.turnUsername,
			Credential: p.turnCredential,
		})
	}
	return servers
}
