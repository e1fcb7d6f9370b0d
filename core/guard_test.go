package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardRegistry_UnregisteredKindsAreValid(t *testing.T) {
	g := NewGuardRegistry()
	require.True(t, g.IsValid(nil))
	require.True(t, g.IsValid("anything"))
	require.True(t, g.IsValid(&testOwner{}))
}

func TestGuardRegistry_RegisteredValidatorDecides(t *testing.T) {
	g := NewGuardRegistry()
	RegisterValidator(g, func(o *testOwner) bool { return !o.IsClosed() })

	owner := &testOwner{}
	require.True(t, g.IsValid(owner))

	owner.Close()
	require.False(t, g.IsValid(owner))

	// Other kinds are untouched by the *testOwner validator.
	require.True(t, g.IsValid("still fine"))
}

func TestGuardRegistry_ReRegistrationReplaces(t *testing.T) {
	g := NewGuardRegistry()
	RegisterValidator(g, func(o *testOwner) bool { return false })
	require.False(t, g.IsValid(&testOwner{}))

	RegisterValidator(g, func(o *testOwner) bool { return true })
	require.True(t, g.IsValid(&testOwner{}))
}

func TestGuardRegistry_RegisterWithSampleValue(t *testing.T) {
	g := NewGuardRegistry()
	g.Register("", ValidatorFunc(func(owner any) bool {
		s, ok := owner.(string)
		return ok && s != "closed"
	}))

	require.True(t, g.IsValid("open"))
	require.False(t, g.IsValid("closed"))
}

func TestGuardRegistry_NilArgumentsIgnored(t *testing.T) {
	g := NewGuardRegistry()
	g.Register(nil, ValidatorFunc(func(owner any) bool { return false }))
	g.Register("sample", nil)
	require.True(t, g.IsValid("sample"))
}

func TestGuardRegistry_InterfaceOwnerKind(t *testing.T) {
	g := NewGuardRegistry()

	type closer interface{ IsClosed() bool }
	RegisterValidator(g, func(o closer) bool { return !o.IsClosed() })

	owner := &testOwner{}
	// The owner's dynamic type is *testOwner, not the interface, so the
	// interface-kind validator does not apply to it.
	require.True(t, g.IsValid(owner))
}
