// Package util contains helper functions used around the code.
package util

import "strings"

// In returns true if s is found in ss, false otherwise.
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}

	return false
}

// Empty returns true for the zero string or a string of only whitespace.
func Empty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Truthy interprets a loosely typed flag value. Only true, "true", "True", "TRUE", 1 and "yes" count as true,
// anything else is false.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "True" || t == "TRUE" || t == "yes"
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	}

	return false
}
