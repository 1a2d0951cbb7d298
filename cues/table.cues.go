package cues

import (
	"fmt"
	"reflect"
	"sort"
)

// Builder collects cues from one or more note sets.
type Builder struct {
	registry Registry
	cues     []Cue
}

func NewBuilder(registry Registry) *Builder {
	return &Builder{registry: registry}
}

// Schedule adds one cue per distinct tick in notes, or one per note when
// allowConcurrent is set. Cue indices restart at 1 for every call. It
// returns the number of cues added.
func (b *Builder) Schedule(notes []Note, handlerName string, scope any, allowConcurrent bool) (int, error) {
	handler, ok := b.registry[handlerName]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHandler, handlerName)
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: %q", ErrNilHandler, handlerName)
	}

	lastTick := -1
	currentCue := 1
	added := 0
	for _, note := range notes {
		if note.Tick == lastTick && !allowConcurrent {
			continue
		}
		note.Cue = currentCue
		b.cues = append(b.cues, Cue{
			Time:        note.Time,
			HandlerName: handlerName,
			Handler:     handler,
			Payload:     note,
			Scope:       scope,
			Seq:         len(b.cues),
		})
		lastTick = note.Tick
		currentCue++
		added++
	}

	return added, nil
}

// Build sorts the collected cues by time. Equal times keep enqueue order.
func (b *Builder) Build() *Table {
	cues := make([]Cue, len(b.cues))
	copy(cues, b.cues)
	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Time < cues[j].Time
	})
	return &Table{cues: cues}
}

// Build is the single-track shorthand for NewBuilder + Schedule + Build.
func Build(notes []Note, registry Registry, handlerName string, allowConcurrent bool) (*Table, error) {
	b := NewBuilder(registry)
	if _, err := b.Schedule(notes, handlerName, nil, allowConcurrent); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Table is an immutable, time-ordered cue list with a consuming cursor.
type Table struct {
	cues   []Cue
	cursor int
}

// DueCues returns the cues with since < Time <= upto that have not fired yet,
// in time order, and moves the cursor past them.
func (t *Table) DueCues(since, upto float64) []Cue {
	var due []Cue
	for t.cursor < len(t.cues) && t.cues[t.cursor].Time <= upto {
		c := t.cues[t.cursor]
		t.cursor++
		if c.Time > since {
			due = append(due, c)
		}
	}
	return due
}

// Reset rewinds the cursor and resets every scope that carries run state.
func (t *Table) Reset() {
	t.cursor = 0
	seen := map[any]bool{}
	for _, c := range t.cues {
		r, ok := c.Scope.(Resetter)
		if !ok {
			continue
		}
		key, ok := scopeKey(r)
		if ok && seen[key] {
			continue
		}
		if ok {
			seen[key] = true
		}
		r.Reset()
	}
}

type refKey struct {
	typ reflect.Type
	ptr uintptr
}

// scopeKey identifies a scope for deduplication. Slice, map and func scopes
// cannot be hashed and are keyed by type and backing pointer; other
// unhashable scopes get no key and are reset once per cue.
func scopeKey(r Resetter) (any, bool) {
	typ := reflect.TypeOf(r)
	if typ.Comparable() {
		return r, true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return refKey{typ: typ, ptr: v.Pointer()}, true
	}
	return nil, false
}

func (t *Table) Len() int { return len(t.cues) }

func (t *Table) Remaining() int { return len(t.cues) - t.cursor }

// Cues returns a copy of the ordered cue list.
func (t *Table) Cues() []Cue {
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}
