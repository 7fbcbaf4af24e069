package permission

import (
	"errors"
	"strings"
)

// Wildcard is the group id that satisfies any clause containing it.
const Wildcard int64 = -1

// Set is the access-control expression attached to a published message.
//
// The zero Set has no user ids and no group clauses and matches every
// credential.
type Set struct {
	UserIDs      IDList  `json:"user_ids"`
	GroupClauses Clauses `json:"group_ids"`
}

// Empty reports whether the set carries no user ids and no group clauses.
func (s Set) Empty() bool {
	return len(s.UserIDs) == 0 && len(s.GroupClauses) == 0
}

// Mode selects how the user-id and group-clause halves of a [Set] combine.
type Mode int

const (
	// ModeAll requires both halves to hold; an empty half holds trivially.
	ModeAll Mode = iota
	// ModeAny requires either non-empty half to hold.
	ModeAny
)

// ErrUnknownMode is returned by [ParseMode] for unrecognized names.
var ErrUnknownMode = errors.New("unknown permission mode")

// ParseMode maps "all" and "any" (case-insensitive) to a [Mode].
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all", "and":
		return ModeAll, nil
	case "any", "or":
		return ModeAny, nil
	default:
		return ModeAll, ErrUnknownMode
	}
}

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeAny:
		return "any"
	default:
		return "unknown"
	}
}

// Matcher evaluates permission sets against a credential's identity.
//
// Matcher is a value type with no state beyond its mode and is safe for
// concurrent use.
type Matcher struct {
	Mode Mode
}

// Matches reports whether a credential with userID and groupIDs satisfies s.
//
// Cost is O(clauses x clause size x len(groupIDs)); it performs no allocation.
func (m Matcher) Matches(s Set, userID int64, groupIDs []int64) bool {
	if s.Empty() {
		return true
	}

	switch m.Mode {
	case ModeAny:
		if len(s.UserIDs) > 0 && s.UserIDs.Contains(userID) {
			return true
		}
		return s.constrainsGroups() && s.groupsSatisfied(groupIDs)
	default:
		if len(s.UserIDs) > 0 && !s.UserIDs.Contains(userID) {
			return false
		}
		return s.groupsSatisfied(groupIDs)
	}
}

// Matches evaluates s with [ModeAll].
func Matches(s Set, userID int64, groupIDs []int64) bool {
	return Matcher{Mode: ModeAll}.Matches(s, userID, groupIDs)
}

// groupsSatisfied reports whether every non-nil clause either intersects
// groupIDs or contains the wildcard.
func (s Set) groupsSatisfied(groupIDs []int64) bool {
	for _, clause := range s.GroupClauses {
		if clause == nil {
			continue
		}
		if clause.Contains(Wildcard) {
			continue
		}
		if !clause.Intersects(groupIDs) {
			return false
		}
	}
	return true
}

func (s Set) constrainsGroups() bool {
	for _, clause := range s.GroupClauses {
		if clause != nil {
			return true
		}
	}
	return false
}
