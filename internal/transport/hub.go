package transport

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// Hub tracks live sockets and their room subscriptions.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Socket
	sockets map[string]*Socket
	logger  *slog.Logger
}

// NewHub initializes an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:   make(map[string]map[string]*Socket),
		sockets: make(map[string]*Socket),
		logger:  logger,
	}
}

func (h *Hub) add(s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sockets[s.id] = s
}

// remove drops the socket and every room subscription it holds.
func (h *Hub) remove(s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sockets, s.id)
	for room, members := range h.rooms {
		if _, ok := members[s.id]; !ok {
			continue
		}
		delete(members, s.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) join(room string, s *Socket) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, live := h.sockets[s.id]; !live {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Socket)
		h.rooms[room] = members
	}
	members[s.id] = s
	return true
}

func (h *Hub) leave(room string, s *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, s.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) inRoom(room string, s *Socket) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][s.id]
	return ok
}

func (h *Hub) roomsOf(s *Socket) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var rooms []string
	for room, members := range h.rooms {
		if _, ok := members[s.id]; ok {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

// Members returns the sorted IDs of the sockets currently in room.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Socket looks up a live socket by ID.
func (h *Hub) Socket(id string) (*Socket, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sockets[id]
	return s, ok
}

// BroadcastRoom emits the event to every socket currently in room and
// returns how many sockets accepted it.
func (h *Hub) BroadcastRoom(room, event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Socket, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	return h.deliver(targets, event, payload)
}

// BroadcastAll emits the event to every live socket.
func (h *Hub) BroadcastAll(event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	return h.deliver(targets, event, payload)
}

func (h *Hub) deliver(targets []*Socket, event string, payload any) int {
	delivered := 0
	for _, s := range targets {
		if err := s.Emit(event, payload); err != nil {
			if !errors.Is(err, ErrSocketClosed) {
				h.logger.Warn("drop event", "socket", s.id, "event", event, "error", err)
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Stats reports the number of non-empty rooms and live sockets.
func (h *Hub) Stats() (rooms, sockets int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.sockets)
}

func (h *Hub) snapshot() []*Socket {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := make([]*Socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		all = append(all, s)
	}
	return all
}
