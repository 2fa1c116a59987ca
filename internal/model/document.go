package model

// AggregateDocument is the nested mapping written as the tool's JSON output.
// In app grouping the outer key is the package name and the inner key is the
// version; in release grouping the outer key is the release identifier and
// the inner key is the package name.
//
// encoding/json sorts map keys, so a document's serialized form depends only
// on its contents, not on merge order.
type AggregateDocument map[string]map[string]StorageMeasurement

// Set stores a measurement under (group, nested), allocating the inner map
// on first use. Setting the same pair twice with the same value is a no-op.
func (d AggregateDocument) Set(group, nested string, m StorageMeasurement) {
	inner, ok := d[group]
	if !ok {
		inner = make(map[string]StorageMeasurement)
		d[group] = inner
	}
	inner[nested] = m
}

// Has reports whether a measurement exists under (group, nested).
func (d AggregateDocument) Has(group, nested string) bool {
	inner, ok := d[group]
	if !ok {
		return false
	}
	_, ok = inner[nested]
	return ok
}

// Len returns the total number of nested entries across all groups.
func (d AggregateDocument) Len() int {
	n := 0
	for _, inner := range d {
		n += len(inner)
	}
	return n
}

// Clone returns a deep copy of the document.
func (d AggregateDocument) Clone() AggregateDocument {
	out := make(AggregateDocument, len(d))
	for group, inner := range d {
		copied := make(map[string]StorageMeasurement, len(inner))
		for nested, m := range inner {
			copied[nested] = m
		}
		out[group] = copied
	}
	return out
}
