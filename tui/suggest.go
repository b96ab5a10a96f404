package tui

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/tui/styles"
)

const maxVisibleSuggestions = 8

// commandEntry represents a slash command and its short description
type commandEntry struct {
	name  string
	desc  string
	usage string
}

func commandEntries(cmds []api.SlashCommand) []commandEntry {
	out := make([]commandEntry, 0, len(cmds))
	for _, c := range cmds {
		name := c.Name
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		out = append(out, commandEntry{name: name, desc: c.Description, usage: c.Usage})
	}
	return out
}

type commandNames []commandEntry

func (c commandNames) String(i int) string { return strings.TrimPrefix(c[i].name, "/") }
func (c commandNames) Len() int            { return len(c) }

// suggestions is the slash command menu under the compose box
type suggestions struct {
	commands []commandEntry
	items    []commandEntry
	index    int
	visible  bool
}

// update filters the menu by the first token of input. Prefix matches are
// shown in catalogue order; when nothing matches by prefix the catalogue is
// ranked fuzzily.
func (s *suggestions) update(input string) {
	cur := strings.TrimSpace(input)
	if !strings.HasPrefix(cur, "/") {
		s.hide()
		return
	}
	// Consider only the first token (before first whitespace)
	token := cur
	if i := strings.IndexAny(cur, " \t\n"); i != -1 {
		token = cur[:i]
	}

	lower := strings.ToLower(token)
	var list []commandEntry
	for _, c := range s.commands {
		if token == "/" || strings.HasPrefix(strings.ToLower(c.name), lower) {
			list = append(list, c)
		}
	}
	if len(list) == 0 && len(token) > 1 {
		for _, m := range fuzzy.FindFrom(strings.TrimPrefix(token, "/"), commandNames(s.commands)) {
			list = append(list, s.commands[m.Index])
		}
	}

	s.items = list
	s.visible = len(list) > 0
	if s.index >= len(list) {
		s.index = 0
	}
}

func (s *suggestions) hide() {
	s.visible = false
	s.items = nil
	s.index = 0
}

func (s *suggestions) active() bool {
	return s.visible && len(s.items) > 0
}

func (s *suggestions) up() {
	if s.index > 0 {
		s.index--
	} else {
		s.index = len(s.items) - 1
	}
}

func (s *suggestions) down() {
	s.index = (s.index + 1) % len(s.items)
}

func (s *suggestions) selected() commandEntry {
	return s.items[s.index]
}

// isCommand reports whether the first token of input already names a
// catalogue command exactly.
func (s *suggestions) isCommand(input string) bool {
	token := strings.TrimSpace(input)
	if i := strings.IndexAny(token, " \t\n"); i != -1 {
		token = token[:i]
	}
	for _, c := range s.commands {
		if strings.EqualFold(c.name, token) {
			return true
		}
	}
	return false
}

// complete replaces the first token of input with the selected command.
func (s *suggestions) complete(input string) string {
	selected := s.selected().name
	current := strings.TrimLeft(input, " ")
	spaceIdx := strings.IndexAny(current, " \t\n")
	if spaceIdx == -1 {
		return selected + " "
	}
	return selected + current[spaceIdx:]
}

func (s *suggestions) view(st *styles.Styles, width int) string {
	if !s.active() {
		return ""
	}
	var b strings.Builder
	max := len(s.items)
	if max > maxVisibleSuggestions {
		max = maxVisibleSuggestions
	}
	for i := 0; i < max; i++ {
		item := s.items[i]
		line := fmt.Sprintf(" %s  %s", st.SuggestName.Render(item.name), st.SuggestDesc.Render(item.desc))
		if i == s.index {
			line = st.SuggestSelected.Render(truncateToWidth(fmt.Sprintf(" %s  %s", item.name, item.desc), width))
		}
		b.WriteString(truncateToWidth(line, width))
		b.WriteString("\n")
	}
	if len(s.items) > max {
		b.WriteString(st.SuggestDesc.Render(" … more"))
		b.WriteString("\n")
	}
	if usage := s.selected().usage; usage != "" {
		b.WriteString(st.Label.Render(truncateToWidth(" usage: "+usage, width)))
		b.WriteString("\n")
	}
	return b.String()
}
