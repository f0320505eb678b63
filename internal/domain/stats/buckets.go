// Package stats содержит чистые функции агрегации посылок Codeforces.
// Никакого I/O: на одинаковом входе всегда одинаковый результат.
package stats

import "strconv"

// ══════════════════════════════════════════════════════════════════════════════
// RATING BUCKETS
// ══════════════════════════════════════════════════════════════════════════════

// Bucket - полоса сложности задач шириной 100.
type Bucket int

// Rating buckets in storage order. Bucket800 through Bucket2300 cover
// [800+100k, 900+100k); Bucket2400Plus is open-ended.
const (
	Bucket800 Bucket = iota
	Bucket900
	Bucket1000
	Bucket1100
	Bucket1200
	Bucket1300
	Bucket1400
	Bucket1500
	Bucket1600
	Bucket1700
	Bucket1800
	Bucket1900
	Bucket2000
	Bucket2100
	Bucket2200
	Bucket2300
	Bucket2400Plus
	BucketUnknown

	// BucketCount - общее число корзин, включая unknown.
	BucketCount = int(BucketUnknown) + 1
)

// BucketCounts holds one counter per bucket, indexed by Bucket.
type BucketCounts [BucketCount]int

// BucketFor возвращает корзину для рейтинга задачи.
// nil и 0 означают, что рейтинг не назначен. Рейтинг ниже 900
// (в том числе ниже 800) попадает в Bucket800.
func BucketFor(rating *int) Bucket {
	if rating == nil || *rating <= 0 {
		return BucketUnknown
	}
	r := *rating
	switch {
	case r < 900:
		return Bucket800
	case r >= 2400:
		return Bucket2400Plus
	default:
		return Bucket((r - 800) / 100)
	}
}

// Rated reports whether the bucket corresponds to a known rating.
func (b Bucket) Rated() bool {
	return b >= Bucket800 && b <= Bucket2400Plus
}

// Midpoint возвращает представительный рейтинг корзины для среднего.
// Для 2400+ это 2500, для unknown - 0.
func (b Bucket) Midpoint() int {
	switch {
	case b == Bucket2400Plus:
		return 2500
	case b.Rated():
		return 850 + 100*int(b)
	default:
		return 0
	}
}

// Name returns the bucket's column-style name, e.g. "rating1200".
func (b Bucket) Name() string {
	switch {
	case b == Bucket2400Plus:
		return "rating2400Plus"
	case b == BucketUnknown:
		return "ratingUnknown"
	case b.Rated():
		return "rating" + strconv.Itoa(800+100*int(b))
	default:
		return "ratingInvalid"
	}
}

// AllBuckets returns every bucket in storage order.
func AllBuckets() []Bucket {
	out := make([]Bucket, BucketCount)
	for i := range out {
		out[i] = Bucket(i)
	}
	return out
}

// Total returns the sum of all counters.
func (c BucketCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Rated returns the sum of counters excluding unknown.
func (c BucketCounts) Rated() int {
	return c.Total() - c[BucketUnknown]
}

// Add returns the element-wise sum of two counter sets.
func (c BucketCounts) Add(other BucketCounts) BucketCounts {
	for i := range c {
		c[i] += other[i]
	}
	return c
}

// Map returns the counters keyed by bucket name.
func (c BucketCounts) Map() map[string]int {
	m := make(map[string]int, BucketCount)
	for _, b := range AllBuckets() {
		m[b.Name()] = c[b]
	}
	return m
}

// WeightedAverage returns Σ(midpoint × count) / rated count, or nil when nothing is rated.
func (c BucketCounts) WeightedAverage() *float64 {
	rated := c.Rated()
	if rated == 0 {
		return nil
	}
	sum := 0
	for _, b := range AllBuckets() {
		if b.Rated() {
			sum += b.Midpoint() * c[b]
		}
	}
	avg := float64(sum) / float64(rated)
	return &avg
}
