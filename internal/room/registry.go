package room

import "sync"

// SnapshotFunc persists a document's full encoded state under its name,
// called once when a room's last peer leaves. It is the room-package side
// of the on_destroy callback threaded through Room::create in the
// reference implementation.
type SnapshotFunc func(name string, snapshot []byte)

// Registry hands out the single Room actor for a given document name,
// creating one on first join. Its Join implements the double-checked
// locking algorithm from server.rs's enter_room: an optimistic read-locked
// lookup, and only on a miss (or a miss caused by racing a room's
// teardown) a write-locked create-or-recheck.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	snapshot SnapshotFunc
}

// NewRegistry returns an empty registry. snapshot may be nil if persistence
// is not wired up.
func NewRegistry(snapshot SnapshotFunc) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		snapshot: snapshot,
	}
}

// Join attaches peerID to the room named name, creating the room if this is
// the first peer to ask for it, and returns the Room handle so the caller
// can later call Leave/Deliver against the same actor.
func (reg *Registry) Join(name string, peerID uint64, sink *PeerSink) *Room {
	for {
		reg.mu.RLock()
		rm, ok := reg.rooms[name]
		reg.mu.RUnlock()

		if ok {
			if rm.join(peerID, sink) {
				return rm
			}
			// rm's run loop already exited (its last peer left between our
			// read-lock lookup and this send) and may or may not have been
			// removed from the map yet; clear it ourselves if it's still
			// the entry we saw, then retry from the top.
			reg.mu.Lock()
			if reg.rooms[name] == rm {
				delete(reg.rooms, name)
			}
			reg.mu.Unlock()
			continue
		}

		created, attached := reg.createAndJoin(name, peerID, sink)
		if attached {
			return created
		}
		// Vanishingly unlikely: the brand-new room's last peer already
		// left before this join landed. Retry rather than fail the caller.
	}
}

func (reg *Registry) createAndJoin(name string, peerID uint64, sink *PeerSink) (*Room, bool) {
	reg.mu.Lock()
	if existing, ok := reg.rooms[name]; ok {
		reg.mu.Unlock()
		return existing, existing.join(peerID, sink)
	}

	rm := spawn(name, reg.onRoomDestroyed)
	reg.rooms[name] = rm
	reg.mu.Unlock()

	return rm, rm.join(peerID, sink)
}

// onRoomDestroyed removes rm from the registry (only if it is still the
// current entry for name — a newer room may already have replaced it) and
// forwards the final document snapshot to the configured SnapshotFunc.
func (reg *Registry) onRoomDestroyed(name string, snapshotBytes []byte) {
	reg.mu.Lock()
	// The room itself does not know its own *Room pointer from inside this
	// callback, so we simply drop whatever entry is there if its done
	// channel is already closed — at most one room is ever mid-teardown
	// for a given name at a time because Join serializes creation under
	// the write lock.
	if rm, ok := reg.rooms[name]; ok {
		select {
		case <-rm.done:
			delete(reg.rooms, name)
		default:
		}
	}
	reg.mu.Unlock()

	if reg.snapshot != nil {
		reg.snapshot(name, snapshotBytes)
	}
}

// Leave detaches peerID from rm.
func (reg *Registry) Leave(rm *Room, peerID uint64) {
	rm.leave(peerID)
}

// Deliver forwards an inbound frame from peerID to rm.
func (reg *Registry) Deliver(rm *Room, peerID uint64, frame []byte) {
	rm.deliver(peerID, frame)
}

// Len reports the number of currently live rooms, exposed for a rooms
// listing endpoint and for tests.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
