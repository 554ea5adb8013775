// Package roster keeps the live operators, keyed by id.
//
// Membership changes take the roster lock only for the map update. Calls into an
// operator take that operator's own lock instead, so a slow handler delays other
// calls to the same operator and nothing else.
package roster

import (
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"sync"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
	"github.com/louisbranch/arkomp/internal/services/runtime/plugin"
	"github.com/louisbranch/arkomp/pkg/event"
	"github.com/louisbranch/arkomp/pkg/operator"
)

// ErrOperatorNotFound indicates an id with no live operator.
var ErrOperatorNotFound = apperrors.New(apperrors.CodeOperatorNotFound, "operator is not loaded")

type entry struct {
	id      string
	mu      sync.Mutex
	inst    plugin.Instance
	retired bool
}

// retire releases the operator once no call into it is in progress.
func (e *entry) retire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return
	}
	e.retired = true
	e.inst.Release()
}

// Roster maps operator ids to live instances.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{entries: make(map[string]*entry)}
}

// Insert adds inst under its id. An operator already using the id is retired and
// replaced; the return value reports whether that happened.
func (r *Roster) Insert(inst plugin.Instance) bool {
	id := inst.ID()
	r.mu.Lock()
	old := r.entries[id]
	r.entries[id] = &entry{id: id, inst: inst}
	r.mu.Unlock()

	if old != nil {
		old.retire()
		return true
	}
	return false
}

// Remove retires the operator with the given id.
func (r *Roster) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return apperrors.Wrap(apperrors.CodeOperatorNotFound, "operator is not loaded", fmt.Errorf("id %q", id))
	}
	e.retire()
	return nil
}

// Has reports whether an operator with the id is live.
func (r *Roster) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of live operators.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the live operator ids in sorted order.
func (r *Roster) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Call runs fn against the operator with the given id while holding that
// operator's lock. It reports false when no such operator is live. A panic in fn
// is returned as an error.
func (r *Roster) Call(id string, fn func(operator.Operator)) (bool, error) {
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	if e == nil {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return false, nil
	}
	return true, guard(e.id, e.inst.Operator, fn)
}

// Deliver hands ev to the operator it addresses.
func (r *Roster) Deliver(ev event.Event) (bool, error) {
	return r.Call(ev.OperatorID(), func(op operator.Operator) {
		op.HandleEvent(ev)
	})
}

// Each runs fn for every live operator. Operators inserted or removed while Each
// runs may or may not be visited. Panics are logged and do not stop the iteration.
func (r *Roster) Each(fn func(operator.Operator)) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.retired {
			if err := guard(e.id, e.inst.Operator, fn); err != nil {
				log.Printf("roster: operator call failed id=%q err=%v", e.id, err)
			}
		}
		e.mu.Unlock()
	}
}

// Close retires every operator.
func (r *Roster) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.retire()
	}
}

func guard(id string, op operator.Operator, fn func(operator.Operator)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("roster: operator panic id=%q: %v\n%s", id, rec, debug.Stack())
			err = fmt.Errorf("operator %s panicked: %v", id, rec)
		}
	}()
	fn(op)
	return nil
}
