package changefeed

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpPut    = "put"
)

// Change describes one committed write to the record store.
type Change struct {
	EventID  string          `json:"event_id"`
	Op       string          `json:"op"`
	Key      string          `json:"key"`
	Version  int64           `json:"version"`
	ServerTS int64           `json:"server_ts"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Matches reports whether the change belongs to topic. A topic ending in "/"
// is a prefix; anything else is an exact key.
func (c Change) Matches(topic string) bool {
	if strings.HasSuffix(topic, "/") {
		return strings.HasPrefix(c.Key, topic)
	}
	return c.Key == topic
}

// Hub keeps the last max changes for replay and fans new ones out to
// subscribers. Slow subscribers drop events rather than block writers.
type Hub struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []Change
	watchers map[*Subscription]struct{}
	closed   bool
}

func NewHub(max int) *Hub {
	if max <= 0 {
		max = 500
	}
	return &Hub{
		max:      max,
		watchers: map[*Subscription]struct{}{},
	}
}

func (h *Hub) Publish(op, key string, version int64, data []byte) Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Change{}
	}
	h.nextID++
	ev := Change{
		EventID:  strconv.FormatInt(h.nextID, 10),
		Op:       op,
		Key:      key,
		Version:  version,
		ServerTS: time.Now().UnixMilli(),
		Data:     append(json.RawMessage(nil), data...),
	}
	h.events = append(h.events, ev)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
	for sub := range h.watchers {
		if !ev.Matches(sub.topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			droppedEvents.Add(1)
		}
	}
	return ev
}

// ReplayAfter returns buffered changes for topic newer than lastEventID.
// An empty or malformed id replays everything still buffered.
func (h *Hub) ReplayAfter(topic, lastEventID string) []Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if err != nil {
		last = 0
	}
	out := make([]Change, 0)
	for _, ev := range h.events {
		if !ev.Matches(topic) {
			continue
		}
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

// Subscription delivers changes for one topic until Cancel is called or the
// hub closes, after which C is closed.
type Subscription struct {
	C     <-chan Change
	ch    chan Change
	topic string
	hub   *Hub
}

func (h *Hub) Subscribe(topic string) *Subscription {
	ch := make(chan Change, 32)
	sub := &Subscription{C: ch, ch: ch, topic: topic, hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.watchers[sub] = struct{}{}
	activeSubscriptions.Add(1)
	return sub
}

func (s *Subscription) Topic() string { return s.topic }

func (s *Subscription) Cancel() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[s]; ok {
		delete(h.watchers, s)
		close(s.ch)
		activeSubscriptions.Add(-1)
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.watchers {
		close(sub.ch)
		delete(h.watchers, sub)
		activeSubscriptions.Add(-1)
	}
}
