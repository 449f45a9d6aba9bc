// Package statusfields implements the declarative bit-extraction table
// that turns a raw DuoFern status frame into a {name -> value} mapping
// (spec.md §4.5), plus the small set of named value-maps and transforms
// the table can reference.
//
// The table is expressed as data (two package-level maps built once at
// init time), not as branching code, per spec.md §9's design note: "The
// StatusFieldTable and command catalog are pure data."
package statusfields

import "fmt"

// Value is the tagged {string | number} result of extracting and mapping
// one field, mirroring spec.md §9's "heterogeneous mapping... a sum of
// String | Number."
type Value struct {
	isText bool
	text   string
	number int
}

// Text wraps a string result (from a named value map).
func Text(s string) Value { return Value{isText: true, text: s} }

// Number wraps a numeric result (raw or inverted, unmapped).
func Number(n int) Value { return Value{number: n} }

// IsText reports whether the value carries a string.
func (v Value) IsText() bool { return v.isText }

// TextValue returns the string payload, or "" if the value is numeric.
func (v Value) TextValue() string { return v.text }

// Int returns the numeric payload, or 0 if the value is text.
func (v Value) Int() int { return v.number }

// String renders the value for logging, matching whichever representation
// it actually holds.
func (v Value) String() string {
	if v.isText {
		return v.text
	}
	return fmt.Sprintf("%d", v.number)
}

// Equal compares two Values by their held representation.
func (v Value) Equal(o Value) bool {
	if v.isText != o.isText {
		return false
	}
	if v.isText {
		return v.text == o.text
	}
	return v.number == o.number
}
