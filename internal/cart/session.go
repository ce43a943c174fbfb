package cart

import (
	"sync"
	"time"
)

const subscriberBuffer = 16

// session holds the engine state for one cart id. op serializes mutations
// and refreshes; state guards the snapshots so reads never wait on the
// network.
type session struct {
	id string
	op sync.Mutex

	state     sync.RWMutex
	confirmed Cart
	visible   Cart
	fetchedAt time.Time
	lastUsed  time.Time
	closed    bool

	subsMu  sync.Mutex
	subs    map[int]chan Cart
	nextSub int
}

func newSession(c Cart, fetchedAt, now time.Time) *session {
	return &session{
		id:        c.ID,
		confirmed: c.Clone(),
		visible:   c.Clone(),
		fetchedAt: fetchedAt,
		lastUsed:  now,
		subs:      make(map[int]chan Cart),
	}
}

func (s *session) snapshot() Cart {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.visible.Clone()
}

func (s *session) confirmedSnapshot() Cart {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.confirmed.Clone()
}

func (s *session) lastFetched() time.Time {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.fetchedAt
}

func (s *session) touch(now time.Time) {
	s.state.Lock()
	s.lastUsed = now
	s.state.Unlock()
}

func (s *session) idleSince() time.Time {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.lastUsed
}

// show makes c the visible snapshot without confirming it.
func (s *session) show(c Cart) {
	s.state.Lock()
	s.visible = c.Clone()
	s.state.Unlock()
	s.publish(c)
}

// confirm accepts c as the confirmed snapshot; it is already visible.
func (s *session) confirm(c Cart) {
	s.state.Lock()
	s.confirmed = c.Clone()
	s.visible = c.Clone()
	s.state.Unlock()
}

// adopt replaces both snapshots with a server read and publishes it.
func (s *session) adopt(c Cart, fetchedAt time.Time) {
	s.state.Lock()
	s.confirmed = c.Clone()
	s.visible = c.Clone()
	s.fetchedAt = fetchedAt
	s.state.Unlock()
	s.publish(c)
}

func (s *session) subscribe() (<-chan Cart, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	ch := make(chan Cart, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (s *session) subscriberCount() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// publish fans c out to subscribers. A full subscriber loses its oldest
// pending snapshot so the latest one always lands.
func (s *session) publish(c Cart) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		snap := c.Clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// shutdown closes every subscriber; the session is no longer served.
func (s *session) shutdown() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
