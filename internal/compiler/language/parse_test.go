package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  Type
	}{
		{"app.Logger", NewNamedType("app.Logger")},
		{"unit", Unit()},
		{"app.Pool<app.Conn>", NewNamedType("app.Pool", NewNamedType("app.Conn"))},
		{"&app.Logger", NewRef(NewNamedType("app.Logger"))},
		{"&mut app.Session", NewMutRef(NewNamedType("app.Session"))},
		{"$T", NewGenericParam("T")},
		{"Result<app.User, app.AuthError>", NewResult(NewNamedType("app.User"), NewNamedType("app.AuthError"))},
		{"vireo.Next<$S>", Next(NewGenericParam("S"))},
		{"app.Cache<$K, app.List<$V>>", NewNamedType("app.Cache",
			NewGenericParam("K"), NewNamedType("app.List", NewGenericParam("V")))},
		{"Result<app.Pool<$T>, app.PoolError<$T>>", NewResult(
			NewNamedType("app.Pool", NewGenericParam("T")),
			NewNamedType("app.PoolError", NewGenericParam("T")))},
		{"&mut_field.x", NewRef(NewNamedType("mut_field.x"))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equals(tt.want), "ParseType(%q) = %s, want %s", tt.input, got, tt.want)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	inputs := []string{
		"",
		"app.Pool<",
		"app.Pool<app.Conn",
		"Result<app.User>",
		"app.Logger extra",
		"$",
		"<app.Conn>",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseType(input)
			assert.Error(t, err)
		})
	}
}
