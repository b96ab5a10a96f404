package event

import (
	"encoding/json"
	"fmt"
)

var knownKinds = map[string]Kind{
	string(KindTypingStart):    KindTypingStart,
	string(KindTypingStop):     KindTypingStop,
	string(KindToolStart):      KindToolStart,
	string(KindToolEnd):        KindToolEnd,
	string(KindToolError):      KindToolError,
	string(KindStreamDelta):    KindStreamDelta,
	string(KindSessionMessage): KindSessionMessage,
	string(KindSlashResponse):  KindSlashResponse,
	string(KindSlashError):     KindSlashError,
	string(KindTurnReceipt):    KindTurnReceipt,
	string(KindSessionCreated): KindSessionCreated,
	string(KindAgentList):      KindAgentList,
}

// Decode parses one operator-stream frame
func Decode(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Classify maps an event to its kind. Unknown or missing types are KindIgnore.
func Classify(ev Event) Kind {
	if k, ok := knownKinds[ev.Type]; ok {
		return k
	}
	return KindIgnore
}

// IsTerminal reports whether the event ends a turn for banner purposes.
func IsTerminal(ev Event) bool {
	switch Classify(ev) {
	case KindTurnReceipt, KindTypingStop:
		return true
	case KindStreamDelta:
		return ev.Done
	}
	return false
}
