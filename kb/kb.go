package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBodyUpdated EventType = iota
	EventLinkAcquired
	EventLinkLost
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Body model.BodyDefinition
	Link model.ObservationLink
}

// KnowledgeBase is an in-memory, thread-safe registry of scene bodies and the
// latest observation link per tracker.
type KnowledgeBase struct {
	mu sync.RWMutex

	bodies   map[string]*model.BodyDefinition
	order    []string
	targetID string
	links    map[string]model.ObservationLink

	subs   []subscription
	nextID uint64
}

type subscription struct {
	id uint64
	fn func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		bodies: make(map[string]*model.BodyDefinition),
		links:  make(map[string]model.ObservationLink),
	}
}

// AddBody admits a body. An unspecified period defaults to model.DefaultPeriod;
// the orbit must then validate. It returns an error if the ID already exists or
// if a second target is added. The assigned handle is written back to b.
func (kb *KnowledgeBase) AddBody(b *model.BodyDefinition) error {
	if b == nil {
		return fmt.Errorf("body is nil")
	}
	if b.ID == "" {
		return fmt.Errorf("body with empty ID")
	}
	orbit := b.Orbit.WithDefaults()
	if err := orbit.Validate(); err != nil {
		return fmt.Errorf("body %q: %w", b.ID, err)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.bodies[b.ID]; exists {
		return fmt.Errorf("body with ID %q already exists", b.ID)
	}
	if b.Role == model.RoleTarget && kb.targetID != "" {
		return fmt.Errorf("target already set to %q; cannot add %q", kb.targetID, b.ID)
	}

	b.Orbit = orbit
	b.Handle = len(kb.order)
	stored := *b
	kb.bodies[b.ID] = &stored
	kb.order = append(kb.order, b.ID)
	if b.Role == model.RoleTarget {
		kb.targetID = b.ID
	}
	return nil
}

// GetBody returns a copy of the body with the given ID.
func (kb *KnowledgeBase) GetBody(id string) (model.BodyDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	b, ok := kb.bodies[id]
	if !ok {
		return model.BodyDefinition{}, false
	}
	return *b, true
}

// Target returns the single target body, if one has been added.
func (kb *KnowledgeBase) Target() (model.BodyDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.targetID == "" {
		return model.BodyDefinition{}, false
	}
	return *kb.bodies[kb.targetID], true
}

// ListBodies returns a snapshot of all bodies in handle order.
func (kb *KnowledgeBase) ListBodies() []model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.BodyDefinition, 0, len(kb.order))
	for _, id := range kb.order {
		res = append(res, *kb.bodies[id])
	}
	return res
}

// ListByRole returns bodies with the given role in handle order.
func (kb *KnowledgeBase) ListByRole(role model.Role) []model.BodyDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var res []model.BodyDefinition
	for _, id := range kb.order {
		if b := kb.bodies[id]; b.Role == role {
			res = append(res, *b)
		}
	}
	return res
}

// UpdateBodyState stores a body's derived position and rotation and notifies subscribers.
func (kb *KnowledgeBase) UpdateBodyState(id string, pos, rot model.Motion) error {
	kb.mu.Lock()
	b, ok := kb.bodies[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("body with ID %q not found", id)
	}
	b.Position = pos
	b.Rotation = rot
	event := Event{
		Type: EventBodyUpdated,
		Body: *b,
	}
	subs := kb.subscribers()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// UpdateLink stores the latest link for a tracker. Subscribers are notified
// only when the link's active state flips; the first stored link counts as a
// flip only if it is active.
func (kb *KnowledgeBase) UpdateLink(link model.ObservationLink) error {
	kb.mu.Lock()
	b, ok := kb.bodies[link.TrackerID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("tracker with ID %q not found", link.TrackerID)
	}
	if b.Role != model.RoleTracker {
		kb.mu.Unlock()
		return fmt.Errorf("body %q is a %s, not a tracker", link.TrackerID, b.Role)
	}
	prev := kb.links[link.TrackerID]
	kb.links[link.TrackerID] = link

	if prev.Active == link.Active {
		kb.mu.Unlock()
		return nil
	}
	event := Event{Type: EventLinkLost, Body: *b, Link: link}
	if link.Active {
		event.Type = EventLinkAcquired
	}
	subs := kb.subscribers()
	kb.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Links returns a snapshot of the latest link per tracker ordered by link index.
func (kb *KnowledgeBase) Links() []model.ObservationLink {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.ObservationLink, 0, len(kb.links))
	for _, l := range kb.links {
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nextID++
	id := kb.nextID
	kb.subs = append(kb.subs, subscription{id: id, fn: fn})

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		for i, s := range kb.subs {
			if s.id == id {
				kb.subs = append(kb.subs[:i], kb.subs[i+1:]...)
				return
			}
		}
	}
}

// subscribers copies the callbacks in registration order. Callers hold kb.mu.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	fns := make([]func(Event), len(kb.subs))
	for i, s := range kb.subs {
		fns[i] = s.fn
	}
	return fns
}
