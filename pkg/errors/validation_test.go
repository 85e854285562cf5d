package errors

import (
	"testing"

	"github.com/cohesivestack/valgo"
	"github.com/tj/assert"
)

func TestValidationMessage(t *testing.T) {
	v := valgo.Is(
		valgo.String("", "name", "Name").Not().Blank(),
		valgo.Int(0, "port", "Port").Passing(func(int) bool { return false }, "{{title}} is closed"),
	)

	assert.False(t, v.Valid())

	msg := ValidationMessage(v)
	assert.Contains(t, msg, "Name")
	assert.Contains(t, msg, "Port is closed")
	assert.NotContains(t, msg, "There are")

	assert.Empty(t, ValidationMessage(valgo.Is(valgo.String("x", "name").Not().Blank())))
}
