package dmx

import (
	"fmt"

	"github.com/google/uuid"
)

// Document owns a closed set of elements keyed by UUID plus a designated
// root. Element references resolve through the document index, which is
// what lets the graph carry shared subgraphs and cycles.
type Document struct {
	root     uuid.UUID
	order    []uuid.UUID
	elements map[uuid.UUID]*Element
}

// NewDocument creates a document rooted at root.
func NewDocument(root *Element) *Document {
	d := &Document{
		root:     root.ID(),
		elements: make(map[uuid.UUID]*Element),
	}
	d.Insert(root)
	return d
}

// Insert adds an element to the document set. Inserting an element whose
// UUID is already present replaces it in place.
func (d *Document) Insert(e *Element) {
	if _, ok := d.elements[e.ID()]; !ok {
		d.order = append(d.order, e.ID())
	}
	d.elements[e.ID()] = e
}

// Get returns the element with the given UUID, or nil.
func (d *Document) Get(id uuid.UUID) *Element {
	return d.elements[id]
}

// Root returns the root element.
func (d *Document) Root() *Element {
	return d.elements[d.root]
}

// Len returns the number of elements in the document.
func (d *Document) Len() int {
	return len(d.elements)
}

// Elements returns every element in insertion order.
func (d *Document) Elements() []*Element {
	out := make([]*Element, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.elements[id])
	}
	return out
}

// SetChild inserts child into the document set and writes an element
// reference to it under key on parent.
func (d *Document) SetChild(parent *Element, key string, child *Element) {
	d.Insert(child)
	parent.Set(key, ElementValue(child.ID()))
}

// Validate checks that the root is present and that every non-null
// element reference resolves within the document.
func (d *Document) Validate() error {
	if d.Root() == nil {
		return fmt.Errorf("%w: root element %s not in document", ErrDanglingReference, d.root)
	}
	for _, e := range d.Elements() {
		for _, a := range e.Attrs() {
			for _, target := range a.Value.refTargets() {
				if d.elements[target] == nil {
					return fmt.Errorf("%w: %s.%s -> %s", ErrDanglingReference, e.ID(), a.Key, target)
				}
			}
		}
	}
	return nil
}

// refSite identifies one element-reference slot: the attribute key on
// the owning element, and the array index (-1 for single references).
type refSite struct {
	owner uuid.UUID
	key   string
	index int
}

// reachable walks the graph breadth-first from the root and returns the
// elements in first-reference order. The visited set keyed by UUID is
// what terminates cycles. When sites is non-nil, it receives the slot at
// which each non-root element was first referenced; the text encoder
// inlines the element's literal exactly there.
func (d *Document) reachable(sites map[uuid.UUID]refSite) []*Element {
	root := d.Root()
	if root == nil {
		return nil
	}

	visited := map[uuid.UUID]bool{root.ID(): true}
	queue := []*Element{root}
	var out []*Element

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		out = append(out, e)

		for _, a := range e.Attrs() {
			switch a.Value.Type() {
			case TypeElement:
				id := a.Value.elemVal
				if id == uuid.Nil || visited[id] {
					continue
				}
				visited[id] = true
				if sites != nil {
					sites[id] = refSite{owner: e.ID(), key: a.Key, index: -1}
				}
				queue = append(queue, d.elements[id])
			case TypeElementArray:
				for i, id := range a.Value.elemArr {
					if id == uuid.Nil || visited[id] {
						continue
					}
					visited[id] = true
					if sites != nil {
						sites[id] = refSite{owner: e.ID(), key: a.Key, index: i}
					}
					queue = append(queue, d.elements[id])
				}
			}
		}
	}
	return out
}
