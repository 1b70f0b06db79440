package decision

import (
	"container/list"
	"strconv"
	"time"

	"github.com/vibecorp/vibecorp/comms"
)

// msgKeyPrefixLen bounds how much message content enters the dedup key.
const msgKeyPrefixLen = 64

// MessageKey identifies an inbound message for deduplication: sender, full
// nanosecond timestamp, and a bounded content prefix. Messages differing
// only at millisecond resolution stay distinct.
func MessageKey(m *comms.Message) string {
	content := m.Content
	if len(content) > msgKeyPrefixLen {
		content = content[:msgKeyPrefixLen]
	}
	return m.SenderID + "|" + strconv.FormatInt(m.CreatedAt.UnixNano(), 10) + "|" + content
}

// seenWindow is a bounded, time-windowed LRU of handled message keys.
// Entries fall out either by capacity (least recently seen first) or by
// exceeding the age horizon, so a long-running engine never grows without
// bound.
type seenWindow struct {
	capacity int
	horizon  time.Duration
	order    *list.List // front = most recent; values are *seenEntry
	index    map[string]*list.Element
}

type seenEntry struct {
	key string
	at  time.Time
}

func newSeenWindow(capacity int, horizon time.Duration) *seenWindow {
	if capacity <= 0 {
		capacity = 512
	}
	if horizon <= 0 {
		horizon = 30 * time.Minute
	}
	return &seenWindow{
		capacity: capacity,
		horizon:  horizon,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Seen reports whether key is inside the window.
func (w *seenWindow) Seen(key string, now time.Time) bool {
	w.expire(now)
	_, ok := w.index[key]
	return ok
}

// Add records key, evicting the oldest entry when over capacity.
func (w *seenWindow) Add(key string, now time.Time) {
	w.expire(now)
	if el, ok := w.index[key]; ok {
		el.Value.(*seenEntry).at = now
		w.order.MoveToFront(el)
		return
	}
	w.index[key] = w.order.PushFront(&seenEntry{key: key, at: now})
	for w.order.Len() > w.capacity {
		w.evict(w.order.Back())
	}
}

// Len returns the current number of tracked keys.
func (w *seenWindow) Len() int { return w.order.Len() }

func (w *seenWindow) expire(now time.Time) {
	for el := w.order.Back(); el != nil; {
		e := el.Value.(*seenEntry)
		if now.Sub(e.at) <= w.horizon {
			return
		}
		prev := el.Prev()
		w.evict(el)
		el = prev
	}
}

func (w *seenWindow) evict(el *list.Element) {
	if el == nil {
		return
	}
	delete(w.index, el.Value.(*seenEntry).key)
	w.order.Remove(el)
}
