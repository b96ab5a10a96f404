package transcript

import "testing"

func TestAccumulatorFinalizeAfterRevealCatchesUp(t *testing.T) {
	a := NewAccumulator(2)
	a.Append("Hel")
	a.Append("lo")
	if a.Finish() {
		t.Fatalf("non-empty buffer must not finalize immediately")
	}

	var finalized []Message
	prev := 0
	for i := 0; i < 10 && len(finalized) == 0; i++ {
		msg, ok := a.Tick()
		if ok {
			if prev != 5 {
				t.Fatalf("finalized before reveal caught up: revealed=%d", prev)
			}
			finalized = append(finalized, msg)
			break
		}
		if a.RevealedLen() < prev {
			t.Fatalf("revealed length went backwards: %d < %d", a.RevealedLen(), prev)
		}
		if a.RevealedLen() > a.Len() {
			t.Fatalf("revealed %d exceeds buffer %d", a.RevealedLen(), a.Len())
		}
		prev = a.RevealedLen()
	}

	if len(finalized) != 1 {
		t.Fatalf("expected one finalized message")
	}
	if finalized[0].Content != "Hello" || finalized[0].Role != RoleAssistant {
		t.Fatalf("unexpected finalized message: %+v", finalized[0])
	}
	if a.Active() {
		t.Fatalf("buffers should be cleared after finalize")
	}
}

func TestAccumulatorRevealMonotonic(t *testing.T) {
	a := NewAccumulator(3)
	prev := 0
	for _, d := range []string{"ab", "", "cdefgh", "i", "jklmnopq"} {
		a.Append(d)
		a.Tick()
		if a.RevealedLen() < prev || a.RevealedLen() > a.Len() {
			t.Fatalf("bad reveal state: revealed=%d prev=%d len=%d", a.RevealedLen(), prev, a.Len())
		}
		prev = a.RevealedLen()
	}
	if !a.Streaming() {
		t.Fatalf("expected streaming")
	}
}

func TestAccumulatorEmptyDone(t *testing.T) {
	a := NewAccumulator(4)
	if !a.Finish() {
		t.Fatalf("done on empty buffer should finalize immediately")
	}
	if _, ok := a.Tick(); ok {
		t.Fatalf("empty turn must not produce a message")
	}
}

func TestAccumulatorResetDiscardsPartial(t *testing.T) {
	a := NewAccumulator(4)
	a.Append("partial reply")
	a.Tick()
	a.Reset()
	if a.Active() || a.Revealed() != "" {
		t.Fatalf("reset must discard partial buffer")
	}
}

func TestAccumulatorMultibyteRunes(t *testing.T) {
	a := NewAccumulator(1)
	a.Append("héllo…")
	a.Finish()
	for i := 0; i < 5; i++ {
		a.Tick()
	}
	if a.Revealed() != "héllo" {
		t.Fatalf("unexpected revealed prefix: %q", a.Revealed())
	}
	if _, ok := a.Tick(); ok {
		t.Fatalf("finalized on the tick that revealed the last rune")
	}
	msg, ok := a.Tick()
	if !ok || msg.Content != "héllo…" {
		t.Fatalf("unexpected finalize: %v %q", ok, msg.Content)
	}
}

func TestAccumulatorDeltaAfterDoneStartsNewTurn(t *testing.T) {
	a := NewAccumulator(4)
	if _, ok := a.Append("first reply"); ok {
		t.Fatalf("nothing to flush on the first delta")
	}
	a.Finish()
	a.Tick()

	prev, ok := a.Append("next")
	if !ok || prev.Content != "first reply" || prev.Role != RoleAssistant {
		t.Fatalf("finished turn should be flushed whole, got %v %+v", ok, prev)
	}
	if a.Text() != "next" || a.RevealedLen() != 0 || !a.Streaming() {
		t.Fatalf("new turn should start from an empty reveal, text=%q revealed=%d", a.Text(), a.RevealedLen())
	}
}
