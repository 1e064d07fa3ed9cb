
package directory

import (
	"github.com/meetwire/lounge/internal/auth"
	"github.com/meetwire/lounge/internal/proto"
)

// Sender delivers one event to a single client connection. Delivery is
// fire-and-forget: implementations must never block the caller. ID
// distinguishes connections so a stale socket's teardown cannot remove
// the entry of a newer connection from the same user.
type Sender interface {
	ID() string
	Send(event string, data any)
}

// Entry is one currently connected, networking-available user. Status is
// proto.StatusOnline or proto.StatusBusy; an absent entry means offline.
// PeerID records the explicit call pairing: it is non-empty iff Status is
// BUSY, and pairing is always reciprocal.
type Entry struct {
	ID                  string
	Name                string
	Email               string
	Image               string
	Bio                 string
	Industry            string
	Skills              []string
	NetworkingAvailable bool

	Conn   Sender
	Status string
	PeerID string
}

// Profile returns the fields of an entry that may be shown to other
// users. Email never leaves the server.
func (e Entry) Profile() proto.PublicProfile {
	return proto.PublicProfile{
		ID:       e.ID,
		Name:     e.Name,
		Image:    e.Image,
		Bio:      e.Bio,
		Industry: e.Industry,
	}
}

// NewEntry builds an ONLINE entry from a verified identity.
func NewEntry(ident auth.Identity, conn Sender) Entry {
	return Entry{
		ID:                  ident.ID,
		Name:                ident.Name,
		Email:               ident.Email,
		Image:               ident.Image,
		Bio:                 ident.Bio,
		Industry:            ident.Industry,
		Skills:              ident.Skills,
		NetworkingAvailable: ident.NetworkingAvailable,
		Conn:                conn,
		Status:              proto.StatusOnline,
	}
}

// Store is the authoritative directory of connected users. The in-memory
// implementation is the single-process baseline; the interface exists so
// a distributed backend can be substituted without touching the call
// state machine.
type Store interface {
	// Put inserts or replaces the entry for its user id.
	Put(e Entry)
	Get(id string) (Entry, bool)
	// Remove deletes an entry. Removing an unknown id reports false.
	Remove(id string) bool
	// SetStatus updates status and peer pairing for one user. Reports
	// false when the user is not present.
	SetStatus(id, status, peerID string) bool
	// Snapshot returns the presence list broadcast to clients, sorted by
	// user id for deterministic output.
	Snapshot() []proto.PresenceEntry
	Len() int
}
