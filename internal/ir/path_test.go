package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	root := IRObject{
		"entity": IRObject{
			"age":  IRInt(70),
			"labs": IRObject{"a1c": NewIRDecimal("8.2")},
			"dx":   IRArray{IRString("E11.9"), IRString("I10")},
			"note": IRNull{},
		},
	}

	tests := []struct {
		name  string
		path  string
		want  IRValue
		found bool
	}{
		{"top level object", "entity", root["entity"], true},
		{"nested int", "entity.age", IRInt(70), true},
		{"deep decimal", "entity.labs.a1c", NewIRDecimal("8.2"), true},
		{"array index", "entity.dx.1", IRString("I10"), true},
		{"explicit null is found", "entity.note", IRNull{}, true},
		{"missing leaf", "entity.weight", nil, false},
		{"missing intermediate", "member.plan.id", nil, false},
		{"descend into scalar", "entity.age.value", nil, false},
		{"index out of range", "entity.dx.5", nil, false},
		{"non-numeric index", "entity.dx.first", nil, false},
		{"empty segment", "entity..age", nil, false},
		{"empty path", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(root, tt.path)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.True(t, Equal(tt.want, got), "got %#v", got)
			}
		})
	}
}

func TestLookupNilRoot(t *testing.T) {
	_, ok := Lookup(nil, "entity.age")
	assert.False(t, ok)
}

func TestSetPathCreatesIntermediates(t *testing.T) {
	root := IRObject{"entity": IRInt(1)}
	SetPath(root, "claim.diagnosis.code", IRString("E11.9"))
	SetPath(root, "entity.id", IRString("p-1"))

	got, ok := Lookup(root, "claim.diagnosis.code")
	assert.True(t, ok)
	assert.Equal(t, IRString("E11.9"), got)
	assert.Equal(t, IRObject{"id": IRString("p-1")}, root["entity"], "scalar intermediate is replaced")
}
