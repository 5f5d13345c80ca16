package onboarding

import (
	"encoding/json"
	"sort"
	"strings"
)

// TagSet is the decoded form of a multi-select answer.
type TagSet map[string]struct{}

func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in ascending order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TagSet) Equal(o TagSet) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Has(t) {
			return false
		}
	}
	return true
}

// DecodeTags parses a stored multi-select value. JSON arrays are the primary
// format; anything else is read as a delimited plain-text list written by
// older revisions.
func DecodeTags(stored string) TagSet {
	if strings.TrimSpace(stored) == "" {
		return TagSet{}
	}

	var list []string
	if err := json.Unmarshal([]byte(stored), &list); err == nil {
		return NewTagSet(list...)
	}

	parts := strings.FieldsFunc(stored, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n':
			return true
		}
		return false
	})
	out := TagSet{}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// EncodeTags serializes a set as a sorted JSON array. The empty set encodes
// to "" so that an unanswered multi-select step reads as empty.
func EncodeTags(s TagSet) string {
	if len(s) == 0 {
		return ""
	}
	b, _ := json.Marshal(s.Sorted())
	return string(b)
}

// ToggleTag flips tag membership in the stored value.
func ToggleTag(stored, tag string) string {
	s := DecodeTags(stored)
	if s.Has(tag) {
		delete(s, tag)
	} else {
		s[tag] = struct{}{}
	}
	return EncodeTags(s)
}
