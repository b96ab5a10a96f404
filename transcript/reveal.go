package transcript

import "time"

const (
	// DefaultRevealBudget is how many runes each reveal tick uncovers.
	DefaultRevealBudget = 6
	// DefaultRevealInterval is the reveal tick cadence.
	DefaultRevealInterval = 30 * time.Millisecond
)

// Accumulator buffers stream deltas for the in-flight assistant turn and
// uncovers them at a fixed pace, independent of how bursty delivery is.
type Accumulator struct {
	budget    int
	full      []rune
	revealed  int
	streaming bool
	done      bool
}

// NewAccumulator creates an accumulator revealing budget runes per tick.
func NewAccumulator(budget int) *Accumulator {
	if budget <= 0 {
		budget = DefaultRevealBudget
	}
	return &Accumulator{budget: budget}
}

// Append adds a delta to the buffer. Empty deltas are ignored. A delta that
// arrives after the previous turn finished, while that turn is still being
// revealed, starts a new turn: the finished text is returned as a completed
// assistant message and the buffer restarts with delta.
func (a *Accumulator) Append(delta string) (flushed Message, ok bool) {
	if delta == "" {
		return Message{}, false
	}
	if a.done {
		flushed = Message{Role: RoleAssistant, Content: string(a.full)}
		ok = true
		a.Reset()
	}
	a.full = append(a.full, []rune(delta)...)
	a.streaming = true
	return flushed, ok
}

// Finish marks the turn as complete. When nothing was buffered the turn is
// finalized immediately and Finish reports true; no message results.
func (a *Accumulator) Finish() (finalizedEmpty bool) {
	a.streaming = false
	if len(a.full) == 0 {
		a.Reset()
		return true
	}
	a.done = true
	return false
}

// Tick uncovers up to one budget of runes. A tick that starts with the turn
// done and the whole buffer already revealed returns the full text as a
// finished assistant message and clears the buffers, so the complete text is
// on screen for at least one tick before it is finalized.
func (a *Accumulator) Tick() (Message, bool) {
	if a.done && a.revealed == len(a.full) {
		msg := Message{Role: RoleAssistant, Content: string(a.full)}
		a.Reset()
		return msg, true
	}
	a.revealed += a.budget
	if a.revealed > len(a.full) {
		a.revealed = len(a.full)
	}
	return Message{}, false
}

// Reset discards any partial buffer
func (a *Accumulator) Reset() {
	a.full = nil
	a.revealed = 0
	a.streaming = false
	a.done = false
}

// Revealed returns the currently visible prefix
func (a *Accumulator) Revealed() string {
	return string(a.full[:a.revealed])
}

// Text returns the whole buffered text, revealed or not
func (a *Accumulator) Text() string {
	return string(a.full)
}

// RevealedLen returns the visible prefix length in runes
func (a *Accumulator) RevealedLen() int { return a.revealed }

// Len returns the buffered length in runes
func (a *Accumulator) Len() int { return len(a.full) }

// Streaming reports whether deltas are still arriving
func (a *Accumulator) Streaming() bool { return a.streaming }

// Active reports whether anything is buffered or still being revealed
func (a *Accumulator) Active() bool { return len(a.full) > 0 || a.streaming }
