package services

import "sync"

// RoomLocks hands out one mutex per room id. All queue and vote mutations for
// a room go through its mutex, which is the room's serialization point.
// Locks are never released back; rooms are few and long-lived.
type RoomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRoomLocks() *RoomLocks {
	return &RoomLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *RoomLocks) Get(roomID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	return lock
}
