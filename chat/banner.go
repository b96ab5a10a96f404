package chat

import (
	"fmt"
	"time"

	"github.com/nachoal/pinchy-tui/event"
)

// BannerQuietPeriod is how long the other-session banner stays up after the
// foreign turn ends.
const BannerQuietPeriod = 5 * time.Second

// Banner reports activity in a session other than the viewed one.
type Banner struct {
	SessionID string
	Detail    string

	gen uint64
}

// Active reports whether the banner is showing
func (b Banner) Active() bool { return b.SessionID != "" }

// Generation identifies the current banner update.
func (b Banner) Generation() uint64 { return b.gen }

// Observe records a foreign-session event. It returns the new generation and
// whether the event ended the foreign turn, in which case the host should
// schedule ClearIf(gen) after BannerQuietPeriod.
func (b *Banner) Observe(ev event.Event) (uint64, bool) {
	b.gen++
	b.SessionID = ev.SessionName()
	if detail := BannerDetail(ev); detail != "" {
		b.Detail = detail
	} else if b.Detail == "" {
		b.Detail = "active"
	}
	return b.gen, event.IsTerminal(ev)
}

// ClearIf hides the banner if no update arrived since gen was issued.
func (b *Banner) ClearIf(gen uint64) bool {
	if gen != b.gen || !b.Active() {
		return false
	}
	b.Dismiss()
	return true
}

// Dismiss hides the banner immediately and invalidates pending clears.
func (b *Banner) Dismiss() {
	b.gen++
	b.SessionID = ""
	b.Detail = ""
}

// BannerDetail describes an event for the banner. Empty means keep the
// previous detail.
func BannerDetail(ev event.Event) string {
	switch event.Classify(ev) {
	case event.KindToolStart:
		return fmt.Sprintf("running `%s`", ev.Tool)
	case event.KindToolError:
		return fmt.Sprintf("`%s` failed", ev.Tool)
	case event.KindToolEnd, event.KindTypingStart:
		return "thinking…"
	case event.KindStreamDelta:
		if ev.Done {
			return "completed turn"
		}
		return "responding…"
	case event.KindTurnReceipt, event.KindTypingStop:
		return "completed turn"
	case event.KindSessionMessage:
		return "new message"
	}
	return ""
}
