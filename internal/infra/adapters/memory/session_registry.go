package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/RoomRelay/internal/domain"
)

// SessionRegistry tracks which client sits in which room.
// It holds identifiers only, never transport handles.
type SessionRegistry interface {
	// Join moves the client into roomName, leaving its previous room first.
	Join(clientID uuid.UUID, roomName string) (JoinResult, error)

	// Leave removes the client from its room. false means it was not a member.
	Leave(clientID uuid.UUID) (LeaveResult, bool)

	RoomOf(clientID uuid.UUID) (string, bool)

	// Snapshot returns a deep copy of the room listing.
	Snapshot() domain.RoomListing

	Stats() (rooms int, members int)
}

type JoinResult struct {
	Room string

	// Existing is the member list before the client was added.
	Existing []uuid.UUID

	// Left is set when joining implicitly removed the client from another room.
	Left *LeaveResult

	AlreadyMember bool

	// Rooms is the listing right after the join.
	Rooms domain.RoomListing
}

type LeaveResult struct {
	Room      string
	Remaining []uuid.UUID
	Deleted   bool

	// Rooms is the listing right after the leave.
	Rooms domain.RoomListing
}

type room struct {
	members []uuid.UUID
}

func (r *room) remove(clientID uuid.UUID) {
	for i, id := range r.members {
		if id == clientID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

type sessionRegistry struct {
	maxRoomNameLength int

	rooms  map[string]*room
	member map[uuid.UUID]string

	mu sync.Mutex
}

func NewSessionRegistry(maxRoomNameLength int) SessionRegistry {
	return &sessionRegistry{
		maxRoomNameLength: maxRoomNameLength,
		rooms:             make(map[string]*room),
		member:            make(map[uuid.UUID]string),
	}
}

func (s *sessionRegistry) Join(clientID uuid.UUID, roomName string) (JoinResult, error) {
	name, err := domain.NormalizeRoomName(roomName, s.maxRoomNameLength)
	if err != nil {
		return JoinResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := JoinResult{Room: name}

	if current, ok := s.member[clientID]; ok {
		if current == name {
			res.AlreadyMember = true
			res.Existing = s.othersLocked(name, clientID)
			res.Rooms = s.snapshotLocked()
			return res, nil
		}

		left := s.leaveLocked(clientID, current)
		res.Left = &left
	}

	r, ok := s.rooms[name]
	if !ok {
		r = &room{}
		s.rooms[name] = r
	}

	res.Existing = append([]uuid.UUID(nil), r.members...)

	r.members = append(r.members, clientID)
	s.member[clientID] = name

	res.Rooms = s.snapshotLocked()
	if res.Left != nil {
		res.Left.Rooms = res.Rooms
	}

	return res, nil
}

func (s *sessionRegistry) Leave(clientID uuid.UUID) (LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.member[clientID]
	if !ok {
		return LeaveResult{}, false
	}

	res := s.leaveLocked(clientID, current)
	res.Rooms = s.snapshotLocked()

	return res, true
}

func (s *sessionRegistry) RoomOf(clientID uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.member[clientID]
	return name, ok
}

func (s *sessionRegistry) Snapshot() domain.RoomListing {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *sessionRegistry) Stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms), len(s.member)
}

// leaveLocked must be called with mu held.
func (s *sessionRegistry) leaveLocked(clientID uuid.UUID, name string) LeaveResult {
	delete(s.member, clientID)

	res := LeaveResult{Room: name}

	r, ok := s.rooms[name]
	if !ok {
		res.Deleted = true
		return res
	}

	r.remove(clientID)

	if len(r.members) == 0 {
		delete(s.rooms, name)
		res.Deleted = true
		return res
	}

	res.Remaining = append([]uuid.UUID(nil), r.members...)

	return res
}

func (s *sessionRegistry) othersLocked(name string, clientID uuid.UUID) []uuid.UUID {
	r, ok := s.rooms[name]
	if !ok {
		return nil
	}

	others := make([]uuid.UUID, 0, len(r.members))
	for _, id := range r.members {
		if id != clientID {
			others = append(others, id)
		}
	}

	return others
}

func (s *sessionRegistry) snapshotLocked() domain.RoomListing {
	listing := make(domain.RoomListing, len(s.rooms))

	for name, r := range s.rooms {
		ids := make([]string, 0, len(r.members))
		for _, id := range r.members {
			ids = append(ids, id.String())
		}
		listing[name] = ids
	}

	return listing
}
