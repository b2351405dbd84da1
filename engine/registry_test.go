package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type dummyFactory struct{}

func (dummyFactory) New(Config) (Engine, error) {
	return nil, nil
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("registry-test-unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterAndLookup(t *testing.T) {
	Register("registry-test-dummy", dummyFactory{})

	factory, err := Lookup("registry-test-dummy")
	require.NoError(t, err)
	require.NotNil(t, factory)

	require.Contains(t, Engines(), "registry-test-dummy")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("registry-test-duplicate", dummyFactory{})
	require.Panics(t, func() {
		Register("registry-test-duplicate", dummyFactory{})
	})
}

func TestRegisterNilPanics(t *testing.T) {
	require.Panics(t, func() {
		Register("registry-test-nil", nil)
	})
}
