// Package testutil holds small helpers shared across test suites.
package testutil

import "testing"

// Given, When and Then wrap subtests with narrative prefixes, so multi-step
// scenarios like funding flows read as a sequence in test output.

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
