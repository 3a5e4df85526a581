package typeset

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named interface{ Name() string }

type namedEntity interface {
	named
	Key() int
}

type user struct{}

func (user) Name() string { return "user" }
func (user) Key() int { return 1 }

type other struct{}

func TestAssignable(t *testing.T) {
	assert.True(t, Assignable(Of[user](), Of[named]()))
	assert.True(t, Assignable(Of[namedEntity](), Of[named]()))
	assert.False(t, Assignable(Of[named](), Of[namedEntity]()))
	assert.False(t, Assignable(Of[other](), Of[named]()))
	assert.False(t, Assignable(nil, Of[named]()))
}

func TestLineageMostSpecificFirst(t *testing.T) {
	candidates := []reflect.Type{Of[any](), Of[named](), Of[other](), Of[user](), Of[namedEntity]()}

	got := Lineage(Of[user](), candidates)

	assert.Equal(t, []reflect.Type{Of[user](), Of[namedEntity](), Of[named](), Of[any]()}, got)
}

func TestLineageForInterface(t *testing.T) {
	candidates := []reflect.Type{Of[named](), Of[namedEntity](), Of[user]()}

	got := Lineage(Of[namedEntity](), candidates)

	assert.Equal(t, []reflect.Type{Of[namedEntity](), Of[named]()}, got)
}

func TestAncestryReversesLineage(t *testing.T) {
	candidates := []reflect.Type{Of[user](), Of[named](), Of[namedEntity]()}

	got := Ancestry(Of[user](), candidates)

	assert.Equal(t, []reflect.Type{Of[named](), Of[namedEntity](), Of[user]()}, got)
}

func TestLineageIgnoresDuplicates(t *testing.T) {
	candidates := []reflect.Type{Of[named](), Of[named]()}

	assert.Len(t, Lineage(Of[user](), candidates), 1)
}
