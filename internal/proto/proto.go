
package proto

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Client → server events.
const (
	EventCallRequest        = "call-request"
	EventCallAccept         = "call-accepted"
	EventCallReject         = "call-rejected"
	EventSignal             = "signal"
	EventEndCall            = "end-call"
	EventNetworkingDisabled = "networking-disabled"
)

// Server → client events. Accept/reject share their names with the
// client-side events; direction disambiguates them.
const (
	EventPresenceUpdate = "presence-update"
	EventIncomingCall   = "incoming-call"
	EventCallAccepted   = "call-accepted"
	EventCallStarted    = "call-started"
	EventCallRejected   = "call-rejected"
	EventCallEnded      = "call-ended"
	EventCallError      = "call-error"
)

const (
	StatusOnline = "ONLINE"
	StatusBusy   = "BUSY"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CallTarget is the payload of call-request, call-accepted (client side),
// call-rejected and end-call.
type CallTarget struct {
	ToUserID string `json:"toUserId"`
}

// SignalIn carries an opaque WebRTC signaling blob from a client. The
// server never inspects Signal.
type SignalIn struct {
	ToUserID string          `json:"toUserId"`
	Signal   json.RawMessage `json:"signal"`
}

// SignalOut is the relayed form delivered to the addressee.
type SignalOut struct {
	FromUserID string          `json:"fromUserId"`
	Signal     json.RawMessage `json:"signal"`
}

// PresenceEntry is one row of a presence-update broadcast.
type PresenceEntry struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// PublicProfile is the subset of a user's identity shown to other
// clients. Email is deliberately excluded.
type PublicProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Industry string `json:"industry,omitempty"`
}

type IncomingCall struct {
	From PublicProfile `json:"from"`
}

type CallAccepted struct {
	FromUserID string             `json:"fromUserId"`
	IceServers []webrtc.ICEServer `json:"iceServers"`
}

type CallStarted struct {
	IceServers []webrtc.ICEServer `json:"iceServers"`
}

type CallRejected struct {
	FromUserID string `json:"fromUserId"`
}

type CallEnded struct {
	ByUserID string `json:"byUserId"`
	Reason   string `json:"reason,omitempty"`
}

type CallError struct {
	Message string `json:"message"`
}
