package dmx

import (
	"github.com/google/uuid"
)

// Attr is a (key, value) pair on an element.
type Attr struct {
	Key   string
	Value *Value
}

// Element is a named, classed, UUID-identified record of attributes.
// Attribute keys are case-sensitive and unique within an element;
// insertion order is preserved and is the emission order.
type Element struct {
	id    uuid.UUID
	class string
	name  string

	attrs []Attr
	index map[string]int
}

// NewElement creates an element with a fresh random UUID.
func NewElement(name, class string) *Element {
	return NewElementWithID(name, class, uuid.New())
}

// NewElementWithID creates an element with a caller-supplied UUID.
// Decoders use this to materialize elements before resolving references.
func NewElementWithID(name, class string, id uuid.UUID) *Element {
	return &Element{
		id:    id,
		class: class,
		name:  name,
		index: make(map[string]int),
	}
}

// ID returns the element's UUID.
func (e *Element) ID() uuid.UUID {
	return e.id
}

// Class returns the element's class name.
func (e *Element) Class() string {
	return e.class
}

// SetClass replaces the element's class name.
func (e *Element) SetClass(class string) {
	e.class = class
}

// Name returns the element's instance name.
func (e *Element) Name() string {
	return e.name
}

// SetName replaces the element's instance name.
func (e *Element) SetName(name string) {
	e.name = name
}

// Set inserts or replaces an attribute. A replace keeps the key's
// original insertion position.
func (e *Element) Set(key string, v *Value) {
	if i, ok := e.index[key]; ok {
		e.attrs[i].Value = v
		return
	}
	e.index[key] = len(e.attrs)
	e.attrs = append(e.attrs, Attr{Key: key, Value: v})
}

// Get returns the attribute value for key, or nil if absent.
func (e *Element) Get(key string) *Value {
	if i, ok := e.index[key]; ok {
		return e.attrs[i].Value
	}
	return nil
}

// Remove deletes an attribute, preserving the order of the rest.
func (e *Element) Remove(key string) {
	i, ok := e.index[key]
	if !ok {
		return
	}
	e.attrs = append(e.attrs[:i], e.attrs[i+1:]...)
	delete(e.index, key)
	for j := i; j < len(e.attrs); j++ {
		e.index[e.attrs[j].Key] = j
	}
}

// Attrs returns the element's attributes in insertion order. The slice
// is shared with the element; callers must not grow or reorder it.
func (e *Element) Attrs() []Attr {
	return e.attrs
}

// Len returns the number of attributes.
func (e *Element) Len() int {
	return len(e.attrs)
}
