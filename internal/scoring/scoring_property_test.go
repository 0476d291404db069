package scoring

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestXPAndLevelProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("xp is the weighted sum of counts", prop.ForAll(
		func(w, m, c int) bool {
			return ComputeXP(w, m, c) == 50*w+25*m+30*c
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.Property("level is floor(xp/1000)+1", prop.ForAll(
		func(xp int) bool {
			return ComputeLevel(xp) == xp/1000+1
		},
		gen.IntRange(0, 10000000),
	))

	properties.Property("level is monotonic in xp", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return ComputeLevel(a) <= ComputeLevel(b)
		},
		gen.IntRange(0, 10000000),
		gen.IntRange(0, 10000000),
	))

	properties.TestingRun(t)
}

func TestStreakProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	toDates := func(offsets []int) []time.Time {
		out := make([]time.Time, 0, len(offsets))
		for _, o := range offsets {
			out = append(out, now.AddDate(0, 0, -o))
		}
		return out
	}

	properties.Property("current never exceeds max", prop.ForAll(
		func(offsets []int) bool {
			s := ComputeStreaks(toDates(offsets), now)
			return s.Current <= s.Max
		},
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.Property("duplicating events does not change streaks", prop.ForAll(
		func(offsets []int) bool {
			dates := toDates(offsets)
			doubled := append(append([]time.Time{}, dates...), dates...)
			return ComputeStreaks(dates, now) == ComputeStreaks(doubled, now)
		},
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.Property("max never exceeds distinct active days", prop.ForAll(
		func(offsets []int) bool {
			distinct := make(map[int]struct{})
			for _, o := range offsets {
				distinct[o] = struct{}{}
			}
			return ComputeStreaks(toDates(offsets), now).Max <= len(distinct)
		},
		gen.SliceOf(gen.IntRange(0, 60)),
	))

	properties.TestingRun(t)
}
