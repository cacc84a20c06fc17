// Package td with the typed Thing interaction model.
// A Thing describes a physical or virtual entity through its properties, actions
// and events. Interaction names are unique across all three kinds combined.
package td

import (
	"crypto/md5"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/thingzone/wotlib-go/api"
)

// Thing is an abstraction of a physical or virtual entity whose metadata and
// interfaces are described by a WoT Thing Description.
//
// The interaction maps are only mutated through AddInteraction/RemoveInteraction.
// When a Thing is wrapped by an exposed.ExposedThing the runtime is the sole
// writer and consumers must treat the Thing as read-only.
type Thing struct {
	// ID is the globally unique, immutable, URI shaped identifier
	ID string
	// Title is the optional display name. Name() falls back to the ID.
	Title       string
	Description string
	Support     string
	// Base URI that relative form hrefs resolve against
	Base string
	// Security and SecurityDefinitions are carried as opaque TD metadata
	Security            interface{}
	SecurityDefinitions map[string]interface{}

	updateMutex sync.RWMutex
	properties  map[string]*Property
	actions     map[string]*Action
	events      map[string]*Event
}

// NewThing creates a Thing with the given ID and no interactions
func NewThing(id string) *Thing {
	return &Thing{
		ID:         id,
		properties: make(map[string]*Property),
		actions:    make(map[string]*Action),
		events:     make(map[string]*Event),
	}
}

// Name returns the Thing title, or the ID when no title is set
func (thing *Thing) Name() string {
	if thing.Title != "" {
		return thing.Title
	}
	return thing.ID
}

// UUID returns the deterministic 128-bit identifier of this Thing, derived by
// hashing the Thing ID. The value is stable across runs and safe to use where
// characters that can appear in an URI would be a problem.
func (thing *Thing) UUID() string {
	hashed := md5.Sum([]byte(thing.ID))
	thingUUID, _ := uuid.FromBytes(hashed[:])
	return thingUUID.String()
}

// URLName returns the URL-safe name of this Thing: a slug of the title and the
// UUID, or the UUID alone when no title is set.
func (thing *Thing) URLName() string {
	if thing.Title == "" {
		return thing.UUID()
	}
	return slug.Make(fmt.Sprintf("%s-%s", thing.Title, thing.UUID()))
}

// Properties returns a copy of the property map
func (thing *Thing) Properties() map[string]*Property {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	props := make(map[string]*Property, len(thing.properties))
	for name, prop := range thing.properties {
		props[name] = prop
	}
	return props
}

// Actions returns a copy of the action map
func (thing *Thing) Actions() map[string]*Action {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	actions := make(map[string]*Action, len(thing.actions))
	for name, action := range thing.actions {
		actions[name] = action
	}
	return actions
}

// Events returns a copy of the event map
func (thing *Thing) Events() map[string]*Event {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	events := make(map[string]*Event, len(thing.events))
	for name, ev := range thing.events {
		events[name] = ev
	}
	return events
}

// Property returns the property with the given name, or nil if not declared
func (thing *Thing) Property(name string) *Property {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	return thing.properties[name]
}

// Action returns the action with the given name, or nil if not declared
func (thing *Thing) Action(name string) *Action {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	return thing.actions[name]
}

// Event returns the event with the given name, or nil if not declared
func (thing *Thing) Event(name string) *Event {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	return thing.events[name]
}

// Interactions returns all interactions of this Thing: properties, then
// actions, then events.
func (thing *Thing) Interactions() []Interaction {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	return thing.interactionsUnlocked()
}

func (thing *Thing) interactionsUnlocked() []Interaction {
	list := make([]Interaction, 0, len(thing.properties)+len(thing.actions)+len(thing.events))
	for _, prop := range thing.properties {
		list = append(list, prop)
	}
	for _, action := range thing.actions {
		list = append(list, action)
	}
	for _, ev := range thing.events {
		list = append(list, ev)
	}
	return list
}

// FindInteraction finds an existing interaction by name.
// The name argument may be the original name or the URL-safe version.
// Returns nil when no interaction matches.
func (thing *Thing) FindInteraction(name string) Interaction {
	thing.updateMutex.RLock()
	defer thing.updateMutex.RUnlock()
	return thing.findInteractionUnlocked(name)
}

func (thing *Thing) findInteractionUnlocked(name string) Interaction {
	interactions := thing.interactionsUnlocked()
	for _, intrct := range interactions {
		if intrct.Name() == name {
			return intrct
		}
	}
	for _, intrct := range interactions {
		if intrct.URLName() == name {
			return intrct
		}
	}
	return nil
}

// AddInteraction adds a new interaction to this Thing.
// Fails when the interaction name is already in use by any property, action or
// event, when the name is not URL-safe, or when the interaction does not
// back-reference this Thing.
func (thing *Thing) AddInteraction(intrct Interaction) error {
	if intrct.Thing() != thing {
		return fmt.Errorf("%w: interaction '%s' belongs to a different thing",
			api.ErrDuplicateInteraction, intrct.Name())
	}
	if !IsValidSafeName(intrct.Name()) {
		return fmt.Errorf("invalid interaction name '%s'", intrct.Name())
	}
	thing.updateMutex.Lock()
	defer thing.updateMutex.Unlock()

	if existing := thing.findInteractionUnlocked(intrct.Name()); existing != nil {
		logrus.Errorf("Thing.AddInteraction: duplicate name '%s' on thing '%s'", intrct.Name(), thing.ID)
		return fmt.Errorf("%w: '%s'", api.ErrDuplicateInteraction, intrct.Name())
	}
	switch typed := intrct.(type) {
	case *Property:
		thing.properties[typed.Name()] = typed
	case *Action:
		thing.actions[typed.Name()] = typed
	case *Event:
		thing.events[typed.Name()] = typed
	default:
		return fmt.Errorf("unknown interaction kind for '%s'", intrct.Name())
	}
	return nil
}

// RemoveInteraction removes an existing interaction by name.
// The name argument may be the original name or the URL-safe version.
// Removing an unknown name is not an error.
func (thing *Thing) RemoveInteraction(name string) {
	thing.updateMutex.Lock()
	defer thing.updateMutex.Unlock()

	intrct := thing.findInteractionUnlocked(name)
	if intrct == nil {
		return
	}
	delete(thing.properties, intrct.Name())
	delete(thing.actions, intrct.Name())
	delete(thing.events, intrct.Name())
}

// Forms returns the forms of the interaction with the given name, or nil when
// the interaction is not declared.
func (thing *Thing) Forms(name string) []*Form {
	intrct := thing.FindInteraction(name)
	if intrct == nil {
		return nil
	}
	return intrct.Forms()
}
