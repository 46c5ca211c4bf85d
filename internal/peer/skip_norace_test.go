//go:build !race

package peer

import "testing"

func skipRace(tb testing.TB) { tb.Helper() }
