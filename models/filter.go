package models

import "strings"

// ViewState is the whole of the mutable UI state: which view the sidebar
// has selected, which labels are toggled on, and the search box contents.
// The page handler owns it and passes it down read-only; only the named
// intent handlers change it between requests.
type ViewState struct {
	Folder   string   `json:"folder"`   // active folder id, ignored when Starred is set
	Starred  bool     `json:"starred"`  // starred view: selects on the flag across all folders
	Labels   []string `json:"labels"`   // selected labels, AND-combined
	Search   string   `json:"search"`   // free-text query
	Selected string   `json:"selected"` // open email id, empty when the reading pane is closed
}

// ViewStateFor builds a ViewState from a sidebar selection, translating the
// starred pseudo-folder into the orthogonal starred axis.
func ViewStateFor(view string, labels []string, search string) ViewState {
	vs := ViewState{Labels: labels, Search: search}
	if view == ViewStarred {
		vs.Starred = true
	} else {
		vs.Folder = view
	}
	return vs
}

// Filter derives the visible subset of emails for a view state. It is pure:
// the input slice is never mutated and the same inputs always produce the
// same output. Relative order of the input is preserved, so the provider's
// date-descending ordering survives filtering.
func Filter(emails []Email, state ViewState) []Email {
	out := make([]Email, 0, len(emails))
	for _, e := range emails {
		if matchesView(&e, state) && matchesLabels(&e, state.Labels) && matchesSearch(&e, state.Search) {
			out = append(out, e)
		}
	}
	return out
}

// matchesView applies the folder axis: the starred view selects on the flag
// regardless of folder, every other view compares folder ids.
func matchesView(e *Email, state ViewState) bool {
	if state.Starred {
		return e.Starred
	}
	return e.Folder == state.Folder
}

// matchesLabels requires the email's label set to be a superset of every
// selected label. An empty selection matches everything.
func matchesLabels(e *Email, labels []string) bool {
	for _, label := range labels {
		if !e.HasLabel(label) {
			return false
		}
	}
	return true
}

// matchesSearch is a case-insensitive substring match over subject, sender
// and preview. No tokenization, no ranking.
func matchesSearch(e *Email, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(e.Subject), q) ||
		strings.Contains(strings.ToLower(e.From), q) ||
		strings.Contains(strings.ToLower(e.Preview), q)
}
