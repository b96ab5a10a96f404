package transcript

// Merge combines persisted messages with live ones. Persisted messages keep
// their order; a live message whose exact key or base key already appears in
// persisted is skipped and the rest are appended in their own order. The
// gateway stamps a persisted row when the turn ends, so the base key matches
// regardless of how far the timestamps drift. Merge never mutates its inputs
// and is meant to be recomputed whenever either side changes.
func Merge(persisted, live []Message) []Message {
	if len(persisted) == 0 {
		return dedupe(nil, live)
	}
	if len(live) == 0 {
		return append([]Message(nil), persisted...)
	}

	out := make([]Message, 0, len(persisted)+len(live))
	out = append(out, persisted...)

	exact := make(map[string]struct{}, len(persisted))
	base := make(map[string]struct{}, len(persisted))
	for _, m := range persisted {
		exact[m.Key()] = struct{}{}
		base[m.BaseKey()] = struct{}{}
	}

	for _, m := range live {
		if _, ok := exact[m.Key()]; ok {
			continue
		}
		if _, ok := base[m.BaseKey()]; ok {
			continue
		}
		exact[m.Key()] = struct{}{}
		out = append(out, m)
	}
	return out
}

func dedupe(out, msgs []Message) []Message {
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.Key()]; ok {
			continue
		}
		seen[m.Key()] = struct{}{}
		out = append(out, m)
	}
	return out
}
