package host

import "sync"

const (
	debugLogSize = 50
	historySize  = 100

	// subscriber channels are buffered; a subscriber that falls this far
	// behind loses events rather than blocking the delivery context
	subscriberBuffer = 16
)

// Hub fans events out to subscribers with broadcast semantics: every active
// subscriber receives every event on its topics. The most recent event per
// topic is cached and handed synchronously to late subscribers, and a
// bounded per-topic history is kept for replay queries.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	latest  map[Topic]Event
	history map[Topic]*eventRing
	log     *eventRing
}

func NewHub() *Hub {
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		latest:  make(map[Topic]Event),
		history: make(map[Topic]*eventRing),
		log:     newEventRing(debugLogSize),
	}
}

// Subscription receives events on C. Close it when done; the hub never
// closes C on its own.
type Subscription struct {
	C      chan Event
	topics map[Topic]bool
	hub    *Hub
}

// Subscribe registers for the given topics. Cached latest values are queued
// before any future event, so a late subscriber is never blank until the
// next tick.
func (h *Hub) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriberBuffer),
		topics: make(map[Topic]bool, len(topics)),
		hub:    h,
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		if ev, ok := h.latest[t]; ok {
			sub.C <- ev
		}
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s]; !ok {
		return
	}
	delete(s.hub.subs, s)
	close(s.C)
}

// Publish dispatches an event: caches it, records it in the topic history
// and the debug log, and fans it out without blocking.
func (h *Hub) Publish(topic Topic, data interface{}) {
	ev := Event{Topic: topic, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[topic] = ev
	ring := h.history[topic]
	if ring == nil {
		ring = newEventRing(historySize)
		h.history[topic] = ring
	}
	ring.append(ev)
	h.log.append(ev)
	for sub := range h.subs {
		if !sub.topics[topic] {
			continue
		}
		select {
		case sub.C <- ev:
		default:
		}
	}
}

// Latest returns the cached most-recent event for a topic.
func (h *Hub) Latest(topic Topic) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.latest[topic]
	return ev, ok
}

// History returns a snapshot of the recent events on one topic, oldest
// first.
func (h *Hub) History(topic Topic) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := h.history[topic]
	if ring == nil {
		return nil
	}
	return ring.entries()
}

// DebugLog returns a snapshot of the recent dispatched events, oldest first.
func (h *Hub) DebugLog() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.log.entries()
}

// eventRing is a bounded ring of dispatched events; oldest evicted first.
// Synchronization is the hub's job.
type eventRing struct {
	ring []Event
	next int
	full bool
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{ring: make([]Event, capacity)}
}

func (l *eventRing) append(ev Event) {
	l.ring[l.next] = ev
	l.next++
	if l.next == len(l.ring) {
		l.next = 0
		l.full = true
	}
}

func (l *eventRing) entries() []Event {
	if !l.full {
		return append([]Event(nil), l.ring[:l.next]...)
	}
	out := make([]Event, 0, len(l.ring))
	out = append(out, l.ring[l.next:]...)
	return append(out, l.ring[:l.next]...)
}
