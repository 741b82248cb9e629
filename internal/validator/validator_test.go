package validator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/library-lending/internal/validator"
)

func Test_ValidateTitle(t *testing.T) {
	cases := []struct {
		title string
		valid bool
	}{
		{"Dune", true},
		{"Ñandú", true},
		{"Du", false},
		{"dune", false},
		{"", false},
		{"A" + strings.Repeat("b", 254), true},
		{"A" + strings.Repeat("b", 255), false},
	}

	for _, tc := range cases {
		v := validator.New()
		validator.ValidateTitle(v, tc.title)
		assert.Equal(t, tc.valid, v.Valid(), "title %q", tc.title)
	}
}

func Test_ValidateAuthor(t *testing.T) {
	cases := []struct {
		author string
		valid  bool
	}{
		{"Frank Herbert", true},
		{"F H", true},
		{"frank Herbert", false},
		{"Frank herbert", false},
		{"Frank", false},
		{"Frank Patrick Herbert", false},
		{"Frank  Herbert", false},
		{"", false},
	}

	for _, tc := range cases {
		v := validator.New()
		validator.ValidateAuthor(v, tc.author)
		assert.Equal(t, tc.valid, v.Valid(), "author %q", tc.author)
	}
}

func Test_ValidatePersonName(t *testing.T) {
	v := validator.New()

	validator.ValidatePersonName(v, "name", "")
	validator.ValidatePersonName(v, "surname", strings.Repeat("x", 256))
	validator.ValidatePersonName(v, "nickname", "   ")

	assert.False(t, v.Valid())
	assert.Equal(t, "must be provided", v.Errors["name"])
	assert.Equal(t, "must be between 1 and 255 characters long", v.Errors["surname"])
	assert.Equal(t, "must be provided", v.Errors["nickname"])
}

func Test_Validator_FirstErrorPerKeyWins(t *testing.T) {
	v := validator.New()

	v.AddError("title", "first")
	v.AddError("title", "second")
	v.Check(true, "author", "never recorded")

	assert.Equal(t, map[string]string{"title": "first"}, v.Errors)
}

func Test_IsUUID(t *testing.T) {
	assert.True(t, validator.IsUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.False(t, validator.IsUUID("42"))
	assert.False(t, validator.IsUUID(""))
}
