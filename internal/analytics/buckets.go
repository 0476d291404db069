// Package analytics builds calendar-bucketed rollups and scalar KPIs for the admin dashboard.
package analytics

import "time"

// DateBucket is one calendar period of a trend series.
type DateBucket struct {
	Label string
	Start time.Time
	End   time.Time // exclusive
	Value float64
}

// DateFunc extracts the date a record is bucketed by. ok=false excludes the record.
type DateFunc[T any] func(T) (time.Time, bool)

// Aggregator reduces the records that fell into one bucket.
type Aggregator[T any] func([]T) float64

// Sum adds value(record) over a bucket.
func Sum[T any](value func(T) float64) Aggregator[T] {
	return func(items []T) float64 {
		total := 0.0
		for _, item := range items {
			total += value(item)
		}
		return total
	}
}

// Count counts the records in a bucket.
func Count[T any]() Aggregator[T] {
	return func(items []T) float64 {
		return float64(len(items))
	}
}

// BucketByMonth groups records into n trailing calendar months ending with the month containing ref,
// oldest first. Month boundaries are taken in ref's location.
func BucketByMonth[T any](items []T, date DateFunc[T], ref time.Time, n int, agg Aggregator[T]) []DateBucket {
	if n <= 0 {
		return []DateBucket{}
	}
	loc := ref.Location()
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(n - 1), 0)

	buckets := make([]DateBucket, n)
	for i := range buckets {
		start := first.AddDate(0, i, 0)
		buckets[i] = DateBucket{
			Label: start.Format("Jan"),
			Start: start,
			End:   start.AddDate(0, 1, 0),
		}
	}
	return fill(buckets, items, date, agg)
}

// BucketByDay groups records into n trailing calendar days ending with ref's day, oldest first.
func BucketByDay[T any](items []T, date DateFunc[T], ref time.Time, n int, agg Aggregator[T]) []DateBucket {
	if n <= 0 {
		return []DateBucket{}
	}
	loc := ref.Location()
	first := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(n - 1))

	buckets := make([]DateBucket, n)
	for i := range buckets {
		start := first.AddDate(0, 0, i)
		buckets[i] = DateBucket{
			Label: start.Format("Mon"),
			Start: start,
			End:   start.AddDate(0, 0, 1),
		}
	}
	return fill(buckets, items, date, agg)
}

// fill assigns each record to the single bucket whose [Start, End) contains it.
func fill[T any](buckets []DateBucket, items []T, date DateFunc[T], agg Aggregator[T]) []DateBucket {
	grouped := make([][]T, len(buckets))
	for _, item := range items {
		at, ok := date(item)
		if !ok || at.IsZero() {
			continue
		}
		for i := range buckets {
			if !at.Before(buckets[i].Start) && at.Before(buckets[i].End) {
				grouped[i] = append(grouped[i], item)
				break
			}
		}
	}
	for i := range buckets {
		buckets[i].Value = agg(grouped[i])
	}
	return buckets
}

// Total sums the values of a series.
func Total(buckets []DateBucket) float64 {
	total := 0.0
	for _, b := range buckets {
		total += b.Value
	}
	return total
}
