package model

// IDField is the reserved primary-key field of every tenant table.
const IDField = "id"

// Record is one row of a tenant table as a field-name to value mapping.
type Record map[string]any

// SplitID separates the id field from the mutable fields. The returned
// record never contains the id and the receiver is left untouched.
func (r Record) SplitID() (id any, rest Record, ok bool) {
	rest = make(Record, len(r))
	for k, v := range r {
		if k == IDField {
			id, ok = v, true
			continue
		}
		rest[k] = v
	}
	return id, rest, ok
}
