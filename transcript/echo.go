package transcript

import "time"

// EchoWindow is how long after a local send its echo from the gateway is
// still recognized as the same message.
const EchoWindow = 30 * time.Second

// EchoFilter remembers messages this client produced locally (optimistic
// sends, finalized streams) so their later echo over the socket is not shown
// twice. Only echoes arriving within EchoWindow are suppressed. Each
// registration suppresses exactly one echo, so repeated sends of the same
// text each hide their own echo.
type EchoFilter struct {
	seen map[string][]time.Time
}

// NewEchoFilter creates an empty filter
func NewEchoFilter() *EchoFilter {
	return &EchoFilter{seen: make(map[string][]time.Time)}
}

// Register records msg as locally produced at now.
func (f *EchoFilter) Register(msg Message, now time.Time) {
	f.prune(now)
	key := msg.BaseKey()
	f.seen[key] = append(f.seen[key], now)
}

// Suppress reports whether msg is an echo of something registered within the
// window. A suppressed echo consumes the oldest matching registration.
func (f *EchoFilter) Suppress(msg Message, now time.Time) bool {
	f.prune(now)
	key := msg.BaseKey()
	pending := f.seen[key]
	if len(pending) == 0 {
		return false
	}
	if len(pending) == 1 {
		delete(f.seen, key)
	} else {
		f.seen[key] = pending[1:]
	}
	return true
}

// Reset forgets everything
func (f *EchoFilter) Reset() {
	f.seen = make(map[string][]time.Time)
}

// Len returns the number of live registrations
func (f *EchoFilter) Len() int {
	n := 0
	for _, pending := range f.seen {
		n += len(pending)
	}
	return n
}

func (f *EchoFilter) prune(now time.Time) {
	for k, pending := range f.seen {
		i := 0
		for i < len(pending) && now.Sub(pending[i]) > EchoWindow {
			i++
		}
		switch {
		case i == len(pending):
			delete(f.seen, k)
		case i > 0:
			f.seen[k] = pending[i:]
		}
	}
}
