package export

import "sort"

// Class is one entry in the unified class table.
type Class struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ClassTable is the release-wide class catalog: every class name seen across
// the exported annotations, sorted lexicographically and numbered
// contiguously from 0. It is the source of truth for data.yaml names, COCO
// categories, and every emitted class ID.
type ClassTable struct {
	classes []Class
	byName  map[string]int
}

// BuildClassTable collects class names from all items and assigns unified IDs.
func BuildClassTable(items []Item) *ClassTable {
	seen := map[string]bool{}
	for _, it := range items {
		for _, ann := range it.Annotations {
			seen[ann.ClassName] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &ClassTable{byName: make(map[string]int, len(names))}
	for i, name := range names {
		t.classes = append(t.classes, Class{ID: i, Name: name})
		t.byName[name] = i
	}
	return t
}

// Remap rewrites every annotation's ClassID to the unified table in place.
func (t *ClassTable) Remap(items []Item) {
	for i := range items {
		for j := range items[i].Annotations {
			items[i].Annotations[j].ClassID = t.byName[items[i].Annotations[j].ClassName]
		}
	}
}

// ID returns the unified ID for a class name.
func (t *ClassTable) ID(name string) int {
	return t.byName[name]
}

// Names returns the class names in ID order.
func (t *ClassTable) Names() []string {
	names := make([]string, len(t.classes))
	for i, c := range t.classes {
		names[i] = c.Name
	}
	return names
}

// Classes returns the table entries in ID order.
func (t *ClassTable) Classes() []Class {
	out := make([]Class, len(t.classes))
	copy(out, t.classes)
	return out
}

// Len returns the class count.
func (t *ClassTable) Len() int {
	return len(t.classes)
}
