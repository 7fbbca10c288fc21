// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/laneflow/internal/geom"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertApprox checks that got is within tol of want.
func AssertApprox(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (tolerance %v)", name, got, want, tol)
	}
}

// AssertPointApprox checks that both coordinates of got are within tol
// of want.
func AssertPointApprox(t *testing.T, name string, got, want geom.Point, tol float64) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol {
		t.Errorf("%s = (%v, %v), want (%v, %v) (tolerance %v)",
			name, got.X, got.Y, want.X, want.Y, tol)
	}
}

// LinePoints builds n points starting at start and advancing by step per
// point. Handy for synthesising straight vehicle tracks.
func LinePoints(start, step geom.Point, n int) []geom.Point {
	out := make([]geom.Point, n)
	for i := 0; i < n; i++ {
		out[i] = geom.Point{X: start.X + float64(i)*step.X, Y: start.Y + float64(i)*step.Y}
	}
	return out
}
