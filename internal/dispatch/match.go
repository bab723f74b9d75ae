package dispatch

import (
	"fmt"
	"strings"
)

// Topic filter syntax.
const (
	// Separator delimits topic levels.
	Separator = "/"

	// WildcardSingle matches exactly one topic level.
	WildcardSingle = "+"

	// WildcardMulti matches all remaining topic levels (zero or more).
	WildcardMulti = "#"
)

// Matches reports whether the topic filter matches the concrete topic.
//
// Examples:
//
//	Matches("a/+/c", "a/x/c")   // true
//	Matches("a/+/c", "a/x/y/c") // false
//	Matches("a/#", "a/b/c")     // true
//	Matches("a/#", "a")         // true
//	Matches("a/b/c", "a/b")     // false
//	Matches("a/b/", "a/b")      // true
func Matches(filter, topic string) bool {
	filterLevels := splitLevels(filter)
	topicLevels := splitLevels(topic)

	for i, level := range filterLevels {
		if level == WildcardMulti {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level != WildcardSingle && level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}

// ValidatePattern checks that a topic filter is well formed.
//
// Rules:
//   - "#" may only appear as the final level
//   - "+" and "#" must occupy an entire level ("a+/b" is rejected)
//
// Returns:
//   - error: wraps ErrInvalidPattern describing the offending level
func ValidatePattern(pattern string) error {
	levels := splitLevels(pattern)
	for i, level := range levels {
		switch {
		case level == WildcardMulti:
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q: %q must be the last level", ErrInvalidPattern, pattern, WildcardMulti)
			}
		case level == WildcardSingle:
		case strings.ContainsAny(level, WildcardSingle+WildcardMulti):
			return fmt.Errorf("%w: %q: wildcard must occupy a whole level (got %q)", ErrInvalidPattern, pattern, level)
		}
	}
	return nil
}

// splitLevels splits a topic or filter into levels, dropping one trailing
// empty level so that "a/b/" and "a/b" compare equal.
func splitLevels(s string) []string {
	levels := strings.Split(s, Separator)
	if levels[len(levels)-1] == "" {
		levels = levels[:len(levels)-1]
	}
	return levels
}

// StripBaseTopic removes baseTopic from the front of topic if present.
// Topics outside the base topic are returned unchanged.
func StripBaseTopic(topic, baseTopic string) string {
	if baseTopic == "" {
		return topic
	}
	return strings.TrimPrefix(topic, baseTopic)
}
