// Package broker owns the authoritative presence directory and the call
// state machine: ONLINE ↔ BUSY transitions, call offer/accept/reject,
// opaque signaling relay and teardown on disconnect. All operations are
// serialized under one mutex, so call-control messages for any pair of
// users are causally ordered. Handlers never block: delivery to a client
// is a non-blocking send into the connection's write queue.
package broker

import (
	"encoding/json"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pion/webrtc/v4"

	"github.com/meetwire/lounge/internal/auth"
	"github.com/meetwire/lounge/internal/directory"
	"github.com/meetwire/lounge/internal/proto"
)

var log = logging.Logger("broker")

// Call-request precondition failures, reported to the requesting party
// only and never broadcast.
const (
	msgRateLimited        = "Too many call requests. Please wait a moment."
	msgCallerNotAvailable = "You are not available for calls"
	msgTargetOffline      = "User is offline or unavailable"
	msgTargetUnavailable  = "User is not available for calls"
	msgTargetBusy         = "User is currently in another call"
	msgCallerGone         = "Caller is no longer available"
	msgAlreadyInCall      = "User is already in a call"
)

// Teardown reasons carried on call-ended.
const (
	reasonLeft         = "peer left"
	reasonDisconnected = "User disconnected"
)

const (
	callRequestLimit  = 5
	callRequestWindow = 60 * time.Second
)

// ICEProvider yields the ICE server list handed to both parties of an
// accepted call.
type ICEProvider interface {
	Servers() []webrtc.ICEServer
}

type Broker struct {
	mu     sync.Mutex
	dir    directory.Store
	conns  map[string]directory.Sender
	limits *limiter
	ice    ICEProvider
}

func New(dir directory.Store, ice ICEProvider) *Broker {
	return &Broker{
		dir:    dir,
		conns:  make(map[string]directory.Sender),
		limits: newLimiter(callRequestLimit, callRequestWindow),
		ice:    ice,
	}
}

// Attach records an admitted connection that is not registered in the
// directory (networking unavailable, or opted out) and sends it the
// current snapshot. Presence broadcasts reach every attached
// connection, directory member or not, so a watching client is never
// left dark.
func (b *Broker) Attach(conn directory.Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn.ID()] = conn
	conn.Send(proto.EventPresenceUpdate, b.dir.Snapshot())
}

// Detach forgets a connection once its socket is gone.
func (b *Broker) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, connID)
}

// Register inserts or replaces the directory entry for a verified,
// networking-available identity and broadcasts the new presence
// snapshot. A duplicate connection from the same user replaces the
// previous entry: last connected wins.
func (b *Broker) Register(ident auth.Identity, conn directory.Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.dir.Get(ident.ID); ok {
		if prev.Conn != nil && prev.Conn.ID() != conn.ID() {
			log.Warnw("duplicate connection replaces previous session", "user", ident.ID)
		}
		// The replaced session may be mid-call; its peer must not be
		// left BUSY against a pairing that no longer exists.
		b.endPeerCallLocked(prev, reasonDisconnected)
	}
	b.conns[conn.ID()] = conn
	b.dir.Put(directory.NewEntry(ident, conn))
	log.Infow("registered", "user", ident.ID, "online", b.dir.Len())
	b.broadcastLocked()
}

// RequestCall runs the ordered precondition checks and, when they all
// pass, delivers an incoming-call offer to the target. No state is
// mutated: a call only exists once it is accepted. Failures go to the
// caller's connection only.
func (b *Broker) RequestCall(conn directory.Sender, callerID, targetID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.limits.Allow(callerID) {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgRateLimited})
		return
	}

	caller, ok := b.dir.Get(callerID)
	if !ok || !caller.NetworkingAvailable {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgCallerNotAvailable})
		return
	}

	target, ok := b.dir.Get(targetID)
	if !ok {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgTargetOffline})
		return
	}
	if !target.NetworkingAvailable {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgTargetUnavailable})
		return
	}
	if target.Status != proto.StatusOnline {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgTargetBusy})
		return
	}

	target.Conn.Send(proto.EventIncomingCall, proto.IncomingCall{From: caller.Profile()})
	log.Debugw("call offered", "from", callerID, "to", targetID)
}

// AcceptCall pairs accepter and caller. Both must still be present; if
// the caller vanished between offer and accept the accepter gets a
// call-error and no state is created. On success both entries flip to
// BUSY with reciprocal peer ids, presence is broadcast, and both parties
// receive the same freshly computed ICE server list.
func (b *Broker) AcceptCall(conn directory.Sender, accepterID, callerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	accepter, ok := b.dir.Get(accepterID)
	if !ok {
		// Accepter raced its own disconnect; nothing to notify.
		return
	}
	caller, ok := b.dir.Get(callerID)
	if !ok {
		conn.Send(proto.EventCallError, proto.CallError{Message: msgCallerGone})
		return
	}
	if accepter.Status != proto.StatusOnline || caller.Status != proto.StatusOnline {
		// One side got into another call first. Refusing keeps pairing
		// reciprocal.
		conn.Send(proto.EventCallError, proto.CallError{Message: msgAlreadyInCall})
		return
	}

	b.dir.SetStatus(accepterID, proto.StatusBusy, callerID)
	b.dir.SetStatus(callerID, proto.StatusBusy, accepterID)

	servers := b.ice.Servers()
	caller.Conn.Send(proto.EventCallAccepted, proto.CallAccepted{FromUserID: accepterID, IceServers: servers})
	accepter.Conn.Send(proto.EventCallStarted, proto.CallStarted{IceServers: servers})

	log.Infow("call started", "caller", callerID, "accepter", accepterID)
	b.broadcastLocked()
}

// RejectCall notifies the caller, if still connected, that the offer was
// declined. No state mutation: a rejected call never marked anyone BUSY.
func (b *Broker) RejectCall(rejecterID, callerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	caller, ok := b.dir.Get(callerID)
	if !ok {
		return
	}
	caller.Conn.Send(proto.EventCallRejected, proto.CallRejected{FromUserID: rejecterID})
	log.Debugw("call rejected", "by", rejecterID, "caller", callerID)
}

// RelaySignal passes an opaque WebRTC signaling payload to the addressee
// unchanged. The payload is never inspected, validated or deduplicated —
// that is the WebRTC layer's job on each client. Dropped silently when
// the addressee is gone; that race is expected, not a fault.
func (b *Broker) RelaySignal(fromID, toID string, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	target, ok := b.dir.Get(toID)
	if !ok {
		return
	}
	target.Conn.Send(proto.EventSignal, proto.SignalOut{FromUserID: fromID, Signal: payload})
}

// EndCall resets the ender to ONLINE unconditionally and, when the
// stored pairing (or, failing that, the client-supplied hint) resolves
// to a connected peer, resets and notifies that peer too. Idempotent:
// ending a call that is not active is a no-op beyond the broadcast.
func (b *Broker) EndCall(enderID, peerIDHint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ender, ok := b.dir.Get(enderID)
	if !ok {
		return
	}
	b.dir.SetStatus(enderID, proto.StatusOnline, "")

	// The stored pairing is authoritative; the hint only matters when no
	// pairing was recorded. A hint naming a user busy with someone else
	// must never tear that call down.
	peerID := ender.PeerID
	if peerID == "" {
		peerID = peerIDHint
	}
	if peer, ok := b.dir.Get(peerID); ok && peer.PeerID == enderID {
		b.dir.SetStatus(peerID, proto.StatusOnline, "")
		peer.Conn.Send(proto.EventCallEnded, proto.CallEnded{ByUserID: enderID})
		log.Infow("call ended", "by", enderID, "peer", peerID)
	}

	b.broadcastLocked()
}

// DisableNetworking tears down any in-progress call, removes the user
// from the directory and broadcasts presence. Used when a connected
// client opts out of networking without disconnecting.
func (b *Broker) DisableNetworking(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.teardownLocked(userID, "", reasonLeft) {
		log.Infow("networking disabled", "user", userID)
		b.broadcastLocked()
	}
}

// HandleDisconnect runs the same teardown on connection loss. Safe for
// users that were never registered (no-op, no broadcast). connID guards
// against a stale socket tearing down a newer session of the same user
// after a duplicate login: when non-empty it must match the connection
// currently recorded in the directory.
func (b *Broker) HandleDisconnect(userID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.teardownLocked(userID, connID, reasonDisconnected) {
		log.Infow("disconnected", "user", userID, "online", b.dir.Len())
		b.broadcastLocked()
	}
}

// Snapshot returns the current presence list.
func (b *Broker) Snapshot() []proto.PresenceEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir.Snapshot()
}

// teardownLocked ends the user's active call via the stored pairing,
// notifies the peer, and removes the entry. Reports whether the
// directory changed.
func (b *Broker) teardownLocked(userID, connID, reason string) bool {
	e, ok := b.dir.Get(userID)
	if !ok {
		return false
	}
	if connID != "" && e.Conn != nil && e.Conn.ID() != connID {
		// A newer connection owns this entry now.
		return false
	}

	b.endPeerCallLocked(e, reason)

	b.dir.Remove(userID)
	return true
}

// endPeerCallLocked resolves e's active call through the stored pairing
// and, when it is reciprocal, resets the peer to ONLINE and notifies it.
// No-op for an entry that is not in a call.
func (b *Broker) endPeerCallLocked(e directory.Entry, reason string) {
	if e.Status != proto.StatusBusy || e.PeerID == "" {
		return
	}
	peer, ok := b.dir.Get(e.PeerID)
	if !ok || peer.PeerID != e.ID {
		return
	}
	b.dir.SetStatus(peer.ID, proto.StatusOnline, "")
	peer.Conn.Send(proto.EventCallEnded, proto.CallEnded{ByUserID: e.ID, Reason: reason})
}

// broadcastLocked fans the presence snapshot out to every attached
// connection, including clients that are not in the directory. Sends are
// fire-and-forget; a slow client drops messages rather than stalling the
// broker.
func (b *Broker) broadcastLocked() {
	snap := b.dir.Snapshot()
	for _, conn := range b.conns {
		conn.Send(proto.EventPresenceUpdate, snap)
	}
}
