package value

import "strconv"

// Entry is one member of a structured scripted value in discovery order.
// Key is nil for keyless (positional) entries.
type Entry struct {
	Key *string
	Val Value
}

// Field returns a keyed entry.
func Field(key string, v Value) Entry {
	return Entry{Key: &key, Val: v}
}

// Elem returns a keyless entry.
func Elem(v Value) Entry {
	return Entry{Val: v}
}

// FromEntries builds a Value from a structured scripted value. The first
// entry decides the branch: an absent or numeric key selects the array
// encoding, a non-numeric string key selects the object encoding. Once
// decided the whole value follows that branch even if later keys disagree in
// kind. An empty entry list always yields an empty object.
func FromEntries(entries []Entry) Value {
	if len(entries) == 0 {
		return Object(nil)
	}
	if isPositional(entries[0]) {
		items := make([]Value, 0, len(entries))
		for _, e := range entries {
			items = append(items, e.Val)
		}
		return Array(items...)
	}
	fields := make(map[string]Value, len(entries))
	for i, e := range entries {
		key := strconv.Itoa(i + 1)
		if e.Key != nil {
			key = *e.Key
		}
		fields[key] = e.Val
	}
	return Object(fields)
}

// isPositional reports whether an entry belongs to the array branch: no key,
// or a key that parses as a number.
func isPositional(e Entry) bool {
	if e.Key == nil {
		return true
	}
	_, err := strconv.ParseFloat(*e.Key, 64)
	return err == nil
}
