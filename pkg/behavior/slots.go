package behavior

import "time"

// Slots is a timer table holding at most one pending task per key. Arming a
// key replaces whatever was pending for it. Slots is not safe for concurrent
// use; it belongs to the orchestrator loop, and fired timers hand their task
// back to that loop through post.
type Slots struct {
	clock Clock
	post  func(func()) bool
	slots map[string]slot
	next  uint64
}

type slot struct {
	timer Timer
	token uint64
}

func newSlots(clock Clock, post func(func()) bool) *Slots {
	return &Slots{
		clock: clock,
		post:  post,
		slots: make(map[string]slot),
	}
}

// Arm schedules fn to run on the loop after d, cancelling any task pending
// for key.
func (s *Slots) Arm(key string, d time.Duration, fn func()) {
	s.Cancel(key)

	s.next++
	token := s.next
	timer := s.clock.AfterFunc(d, func() {
		s.post(func() {
			// A superseded timer may still fire if Stop raced with it.
			cur, ok := s.slots[key]
			if !ok || cur.token != token {
				return
			}
			delete(s.slots, key)
			fn()
		})
	})
	s.slots[key] = slot{timer: timer, token: token}
}

// Cancel drops the task pending for key, if any.
func (s *Slots) Cancel(key string) {
	if cur, ok := s.slots[key]; ok {
		cur.timer.Stop()
		delete(s.slots, key)
	}
}

// Pending reports whether key has a task waiting to fire.
func (s *Slots) Pending(key string) bool {
	_, ok := s.slots[key]
	return ok
}

// CancelAll drops every pending task.
func (s *Slots) CancelAll() {
	for key := range s.slots {
		s.Cancel(key)
	}
}

// Len returns the number of pending tasks.
func (s *Slots) Len() int {
	return len(s.slots)
}
