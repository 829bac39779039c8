// Package surface tracks the live UI surfaces (windows) and fans events out
// to them.
package surface

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// ErrGone is returned by Surface.Send when the underlying window was
// destroyed after it was looked up.
var ErrGone = errors.New("surface gone")

// Surface is one destination for UI events. Implementations must not keep
// the window alive; Alive reports whether it still exists.
type Surface interface {
	Alive() bool
	Send(channel string, data any) error
}

// Predicate selects surfaces by name for Broadcast.
type Predicate func(name string) bool

// All selects every surface.
func All(string) bool { return true }

// Only selects the named surfaces.
func Only(names ...string) Predicate {
	return func(name string) bool { return slices.Contains(names, name) }
}

// Except selects every surface but the named ones.
func Except(names ...string) Predicate {
	return func(name string) bool { return !slices.Contains(names, name) }
}

// Directory maps surface names to surfaces. Entries whose surface is no
// longer alive are pruned when encountered.
type Directory struct {
	log *slog.Logger

	mu       sync.Mutex
	surfaces map[string]Surface
	order    []string
}

// NewDirectory returns an empty Directory.
func NewDirectory(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		log:      logger.With("component", "surface.Directory"),
		surfaces: make(map[string]Surface),
	}
}

// Register adds or replaces the surface called name.
func (d *Directory) Register(name string, s Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.surfaces[name]; !ok {
		d.order = append(d.order, name)
	}
	d.surfaces[name] = s
}

// Unregister removes the surface called name. Unknown names are ignored.
func (d *Directory) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(name)
}

func (d *Directory) remove(name string) {
	if _, ok := d.surfaces[name]; !ok {
		return
	}
	delete(d.surfaces, name)
	d.order = slices.DeleteFunc(d.order, func(n string) bool { return n == name })
}

// pruneIf removes name only if it still maps to s, so a surface registered
// under the same name in the meantime is kept.
func (d *Directory) pruneIf(name string, s Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.surfaces[name]; ok && cur == s {
		d.remove(name)
		d.log.Debug("surface pruned", "name", name)
	}
}

// Lookup returns the live surface called name.
func (d *Directory) Lookup(name string) (Surface, bool) {
	d.mu.Lock()
	s, ok := d.surfaces[name]
	d.mu.Unlock()

	if !ok {
		return nil, false
	}
	if !s.Alive() {
		d.pruneIf(name, s)
		return nil, false
	}
	return s, true
}

// Names returns the names of live surfaces in registration order.
func (d *Directory) Names() []string {
	var names []string
	for _, e := range d.snapshot(All) {
		if e.s.Alive() {
			names = append(names, e.name)
		} else {
			d.pruneIf(e.name, e.s)
		}
	}
	return names
}

// Send delivers one event to the surface called name. It reports whether
// the event was delivered; a missing or dead surface is not an error.
func (d *Directory) Send(name, channel string, data any) bool {
	s, ok := d.Lookup(name)
	if !ok {
		return false
	}
	return d.deliver(name, s, channel, data)
}

// Broadcast delivers one event to every live surface selected by pred and
// returns the number of surfaces reached.
func (d *Directory) Broadcast(channel string, data any, pred Predicate) int {
	if pred == nil {
		pred = All
	}

	sent := 0
	for _, e := range d.snapshot(pred) {
		if !e.s.Alive() {
			d.pruneIf(e.name, e.s)
			continue
		}
		if d.deliver(e.name, e.s, channel, data) {
			sent++
		}
	}
	return sent
}

func (d *Directory) deliver(name string, s Surface, channel string, data any) bool {
	err := s.Send(channel, data)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrGone):
		d.pruneIf(name, s)
	default:
		d.log.Warn("send to surface", "name", name, "channel", channel, "error", err)
	}
	return false
}

type entry struct {
	name string
	s    Surface
}

func (d *Directory) snapshot(pred Predicate) []entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]entry, 0, len(d.order))
	for _, name := range d.order {
		if pred(name) {
			out = append(out, entry{name, d.surfaces[name]})
		}
	}
	return out
}
