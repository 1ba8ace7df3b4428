package orchestrator

import (
	"sync"
	"time"

	"github.com/bdobrica/Hanashi/internal/hanashi/agent"
)

// slot owns one conversation's actor. Construction and teardown for a
// conversation happen under the slot's lock, so different conversations never
// wait on each other.
type slot struct {
	mu      sync.Mutex
	handle  *agent.Handle
	removed bool
}

// registry maps conversation ids to slots. Its own lock only guards the map.
type registry struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func newRegistry() *registry {
	return &registry{slots: make(map[string]*slot)}
}

func (r *registry) slotFor(id string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		s = &slot{}
		r.slots[id] = s
	}
	return s
}

// ensure returns the live actor in id's slot or stores the one start builds.
func (r *registry) ensure(id string, start func() (*agent.Handle, error)) (*agent.Handle, error) {
	for {
		s := r.slotFor(id)
		s.mu.Lock()
		if s.removed {
			// Lost a race with remove; the map now holds a fresh slot.
			s.mu.Unlock()
			continue
		}
		if s.handle != nil && s.handle.Alive() {
			h := s.handle
			s.mu.Unlock()
			return h, nil
		}
		h, err := start()
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.handle = h
		s.mu.Unlock()
		return h, nil
	}
}

// remove unregisters id's actor, if it is still h, and shuts it down. A nil h
// removes whatever actor is registered. graceful is false when the actor had
// to be abandoned.
func (r *registry) remove(id string, h *agent.Handle, grace time.Duration) (graceful, found bool) {
	r.mu.Lock()
	s, ok := r.slots[id]
	r.mu.Unlock()
	if !ok {
		return true, false
	}

	s.mu.Lock()
	if h != nil && s.handle != h {
		s.mu.Unlock()
		return true, false
	}
	victim := s.handle
	s.handle = nil
	s.removed = true
	s.mu.Unlock()

	r.mu.Lock()
	if r.slots[id] == s {
		delete(r.slots, id)
	}
	r.mu.Unlock()

	if victim == nil {
		return true, false
	}
	return victim.Shutdown(grace), true
}

// removeAll removes every registered actor concurrently.
func (r *registry) removeAll(grace time.Duration) (graceful, abandoned int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range r.ids() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, found := r.remove(id, nil, grace)
			if !found {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				graceful++
			} else {
				abandoned++
			}
		}()
	}
	wg.Wait()
	return graceful, abandoned
}

// reap unregisters conversations whose actor goroutine has exited and
// returns how many.
func (r *registry) reap() int {
	n := 0
	for id, s := range r.snapshot() {
		s.mu.Lock()
		if s.handle == nil || s.removed {
			s.mu.Unlock()
			continue
		}
		select {
		case <-s.handle.Done():
		default:
			s.mu.Unlock()
			continue
		}
		s.handle = nil
		s.removed = true
		s.mu.Unlock()

		r.mu.Lock()
		if r.slots[id] == s {
			delete(r.slots, id)
		}
		r.mu.Unlock()
		n++
	}
	return n
}

func (r *registry) liveCount() int {
	n := 0
	for _, s := range r.snapshot() {
		s.mu.Lock()
		if s.handle != nil && s.handle.Alive() {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

func (r *registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.slots))
	for id := range r.slots {
		out = append(out, id)
	}
	return out
}

func (r *registry) snapshot() map[string]*slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*slot, len(r.slots))
	for id, s := range r.slots {
		out[id] = s
	}
	return out
}
