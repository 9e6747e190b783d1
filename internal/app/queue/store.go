// Package queue provides the per-guild track queues and loop flags.
package queue

import (
	"math/rand/v2"
	"sync"

	"github.com/osa030/tunebox/internal/domain/track"
)

// guildQueue is the queue and loop flag owned by a single guild.
type guildQueue struct {
	mu     sync.Mutex
	tracks []track.QueuedTrack
	loop   bool
}

// Store holds one queue and one loop flag per guild. Entries are created
// lazily on first access and never removed; Clear only empties them.
//
// The store-level lock guards the guild map only. All queue operations take
// the guild's own lock, so guilds never block each other.
type Store struct {
	mu     sync.RWMutex
	guilds map[string]*guildQueue

	shuffle func(n int, swap func(i, j int))
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	return &Store{
		guilds:  make(map[string]*guildQueue),
		shuffle: rand.Shuffle,
	}
}

// get returns the guild's queue, creating it if needed.
func (s *Store) get(guildID string) *guildQueue {
	s.mu.RLock()
	q, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok = s.guilds[guildID]; ok {
		return q
	}
	q = &guildQueue{tracks: make([]track.QueuedTrack, 0)}
	s.guilds[guildID] = q
	return q
}

// Enqueue appends tracks to the guild queue in the given order and returns
// the resulting queue length.
func (s *Store) Enqueue(guildID string, qts ...track.QueuedTrack) int {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, qts...)
	return len(q.tracks)
}

// PopFront removes and returns the head of the guild queue. When the loop
// flag is set at the moment of the pop, the track is appended to the tail
// again before returning. ok is false when the queue is empty.
func (s *Store) PopFront(guildID string) (qt track.QueuedTrack, ok bool) {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return track.QueuedTrack{}, false
	}

	qt = q.tracks[0]
	q.tracks[0] = track.QueuedTrack{}
	q.tracks = q.tracks[1:]
	if q.loop {
		q.tracks = append(q.tracks, qt)
	}
	return qt, true
}

// PeekAll returns a copy of the pending tracks in playback order.
func (s *Store) PeekAll(guildID string) []track.QueuedTrack {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]track.QueuedTrack, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Len returns the number of pending tracks.
func (s *Store) Len(guildID string) int {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Clear empties the guild queue and returns the removed tracks. The loop
// flag is left untouched.
func (s *Store) Clear(guildID string) []track.QueuedTrack {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.tracks
	q.tracks = make([]track.QueuedTrack, 0)
	return removed
}

// Remove deletes the first pending occurrence of each given track and
// returns how many were found.
func (s *Store) Remove(guildID string, qts ...track.QueuedTrack) int {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for _, want := range qts {
		for i, qt := range q.tracks {
			if qt == want {
				q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
				removed++
				break
			}
		}
	}
	return removed
}

// ShuffleRemaining permutes the guild queue uniformly at random. It reports
// false and leaves the queue unchanged when fewer than two tracks are queued.
func (s *Store) ShuffleRemaining(guildID string) bool {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) < 2 {
		return false
	}
	s.shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
	return true
}

// ToggleLoop flips the guild loop flag and returns the new value.
func (s *Store) ToggleLoop(guildID string) bool {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()

	q.loop = !q.loop
	return q.loop
}

// IsLoop reports whether the guild loop flag is set.
func (s *Store) IsLoop(guildID string) bool {
	q := s.get(guildID)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// Guilds returns the IDs of every guild that has touched the store.
func (s *Store) Guilds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	return ids
}
