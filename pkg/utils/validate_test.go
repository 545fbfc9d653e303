package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	FullName string   `json:"full_name" binding:"required,max=5"`
	Email    string   `json:"email" binding:"omitempty,email"`
	Labels   []string `json:"labels" binding:"dive,max=3"`
}

func TestFieldErrors(t *testing.T) {
	v := NewValidator()
	err := v.Struct(sampleForm{Email: "nope", Labels: []string{"ok", "toolong"}})
	fields, ok := FieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"full_name": "The full name field is required.",
		"email":     "The email must be a valid email address.",
		"labels.1":  "The label may not be greater than 3 characters.",
	}, fields)

	err = v.Struct(sampleForm{FullName: strings.Repeat("é", 5)})
	assert.NoError(t, err)
	err = v.Struct(sampleForm{FullName: strings.Repeat("é", 6)})
	fields, ok = FieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "The full name may not be greater than 5 characters.", fields["full_name"])
}

func TestFieldErrors_OtherErrors(t *testing.T) {
	_, ok := FieldErrors(assert.AnError)
	assert.False(t, ok)
	_, ok = FieldErrors(nil)
	assert.False(t, ok)
}
