package pipeline

import (
	"errors"
	"sort"
	"sync"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
)

// Warning is a non-fatal finding surfaced at the end of a run.
type Warning struct {
	Kind    reconerr.Kind
	Source  string
	Message string
}

// Warnings accumulates findings; safe for concurrent use.
type Warnings struct {
	mu    sync.Mutex
	items []Warning
	seen  map[Warning]bool
}

// Add records a warning once.
func (w *Warnings) Add(kind reconerr.Kind, source, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = make(map[Warning]bool)
	}
	item := Warning{Kind: kind, Source: source, Message: message}
	if w.seen[item] {
		return
	}
	w.seen[item] = true
	w.items = append(w.items, item)
}

// AddErr records a non-fatal error, keeping its kind and file.
func (w *Warnings) AddErr(source string, err error) {
	var re *reconerr.Error
	if errors.As(err, &re) {
		if re.File != "" {
			source = re.File
		}
		w.Add(re.Kind, source, err.Error())
		return
	}
	w.Add(reconerr.KindUnknown, source, err.Error())
}

// Len returns the number of distinct warnings.
func (w *Warnings) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// List returns the warnings ordered by kind, source and message.
func (w *Warnings) List() []Warning {
	w.mu.Lock()
	out := make([]Warning, len(w.items))
	copy(out, w.items)
	w.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Count returns how many warnings have kind.
func (w *Warnings) Count(kind reconerr.Kind) int {
	n := 0
	for _, item := range w.List() {
		if item.Kind == kind {
			n++
		}
	}
	return n
}
