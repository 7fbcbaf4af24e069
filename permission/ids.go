package permission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrInvalidIDList is returned when a JSON id collection is neither an array nor
// an object of integer values.
var ErrInvalidIDList = errors.New("invalid id list")

// IDList is an ordered sequence of integer ids.
//
// It decodes from a JSON array or from a JSON object whose values are the ids.
// Objects appear when a producer serializes a sparse array as a map; their values
// are ordered by ascending numeric key, falling back to lexical order for
// non-numeric keys.
type IDList []int64

// Contains reports whether id is present in the list.
func (l IDList) Contains(id int64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Intersects reports whether l and other share at least one id.
func (l IDList) Intersects(other []int64) bool {
	for _, v := range other {
		if l.Contains(v) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy. A nil list stays nil.
func (l IDList) Clone() IDList {
	if l == nil {
		return nil
	}
	out := make(IDList, len(l))
	copy(out, l)
	return out
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null yields a nil list; an
// empty array or object yields a non-nil empty list.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	values, err := collectionValues(data)
	if err != nil {
		return err
	}

	out := make(IDList, 0, len(values))
	for _, raw := range values {
		id, err := parseID(raw)
		if err != nil {
			return err
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

// Clauses is an ordered list of group clauses. A nil element is a JSON null
// clause and places no constraint on the credential.
type Clauses []IDList

// UnmarshalJSON accepts a JSON array or object of clauses; each clause is an id
// collection or null.
func (c *Clauses) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	values, err := collectionValues(data)
	if err != nil {
		return err
	}

	out := make(Clauses, 0, len(values))
	for _, raw := range values {
		var clause IDList
		if err := clause.UnmarshalJSON(raw); err != nil {
			return err
		}
		out = append(out, clause)
	}
	*c = out
	return nil
}

// Collection reports whether data is a JSON array or object, the two encodings
// accepted for id collections and channel lists.
func Collection(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && (data[0] == '[' || data[0] == '{')
}

// CollectionValues returns the elements of a JSON array, or the values of a
// JSON object ordered by key.
func CollectionValues(data []byte) ([]json.RawMessage, error) {
	return collectionValues(bytes.TrimSpace(data))
}

func collectionValues(data []byte) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, ErrInvalidIDList
	}

	switch data[0] {
	case '[':
		var values []json.RawMessage
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIDList, err)
		}
		return values, nil
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(data, &byKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIDList, err)
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		values := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			values = append(values, byKey[k])
		}
		return values, nil
	default:
		return nil, ErrInvalidIDList
	}
}

func keyLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func parseID(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidIDList, string(raw))
	}
	if id, err := n.Int64(); err == nil {
		return id, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidIDList, n.String())
	}
	return int64(f), nil
}
