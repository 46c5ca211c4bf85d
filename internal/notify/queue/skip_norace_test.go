//go:build !race

package queue

import "testing"

func skipRace(tb testing.TB) { tb.Helper() }
