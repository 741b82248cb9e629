// Package validator accumulates field-level validation errors.
package validator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// AuthorRX matches "Firstname Lastname", both capitalised.
var AuthorRX = regexp.MustCompile(`^[A-Z][a-z]* [A-Z][a-z]*$`)

// Validator holds a map of field names to their validation error messages.
// A Validator with an empty Errors map is considered valid.
type Validator struct {
	Errors map[string]string
}

// New creates and returns a fresh, empty Validator.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map contains no entries.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records key as failing with the given message. The first failure
// for a key wins.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error for key with message only when ok is false.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Matches returns true if value matches the provided compiled regexp.
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// LengthBetween counts runes, not bytes.
func LengthBetween(value string, lo, hi int) bool {
	n := utf8.RuneCountInString(value)
	return n >= lo && n <= hi
}

// StartsUpper reports whether the first rune is an upper-case letter.
func StartsUpper(value string) bool {
	r, _ := utf8.DecodeRuneInString(value)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// IsUUID reports whether value parses as a UUID.
func IsUUID(value string) bool {
	return uuid.Validate(value) == nil
}

// ValidateTitle applies the catalogue rules for book titles.
func ValidateTitle(v *Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(LengthBetween(title, 3, 255), "title", "must be between 3 and 255 characters long")
	v.Check(StartsUpper(title), "title", "must start with a capital letter")
}

// ValidateAuthor applies the catalogue rules for author names.
func ValidateAuthor(v *Validator, author string) {
	v.Check(author != "", "author", "must be provided")
	v.Check(Matches(author, AuthorRX), "author", "must be two capitalised words, e.g. Frank Herbert")
}

// ValidatePersonName checks a member name or surname stored under key.
// Surrounding whitespace does not count.
func ValidatePersonName(v *Validator, key, value string) {
	value = strings.TrimSpace(value)
	v.Check(value != "", key, "must be provided")
	v.Check(LengthBetween(value, 1, 255), key, "must be between 1 and 255 characters long")
}
