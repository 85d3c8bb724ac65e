package traffic

import (
	"testing"
	"time"
)

func TestBucketTruncate(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2025, 6, 1, 13, 47, 38, 500_000_000, loc)

	tests := []struct {
		bucket Bucket
		want   time.Time
	}{
		{Bucket10s, time.Date(2025, 6, 1, 13, 47, 30, 0, loc)},
		{Bucket1m, time.Date(2025, 6, 1, 13, 47, 0, 0, loc)},
		{Bucket5m, time.Date(2025, 6, 1, 13, 45, 0, 0, loc)},
		{Bucket15m, time.Date(2025, 6, 1, 13, 45, 0, 0, loc)},
		{Bucket1h, time.Date(2025, 6, 1, 13, 0, 0, 0, loc)},
		{Bucket1d, time.Date(2025, 6, 1, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		got := tt.bucket.Truncate(ts)
		if !got.Equal(tt.want) {
			t.Errorf("%v.Truncate(%v) = %v, want %v", tt.bucket, ts, got, tt.want)
		}
	}
}

func TestBucketTruncateIdempotent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 13, 47, 38, 0, time.UTC)
	for _, b := range buckets {
		once := b.Truncate(ts)
		twice := b.Truncate(once)
		if !twice.Equal(once) {
			t.Errorf("%v: Truncate(Truncate(t)) = %v, want %v", b, twice, once)
		}
	}
}

func TestBucketNext(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		bucket Bucket
		from   time.Time
		want   time.Time
	}{
		{Bucket10s, time.Date(2025, 6, 1, 13, 47, 35, 0, loc), time.Date(2025, 6, 1, 13, 47, 40, 0, loc)},
		{Bucket1h, time.Date(2025, 6, 1, 13, 30, 0, 0, loc), time.Date(2025, 6, 1, 14, 0, 0, 0, loc)},
		{Bucket1d, time.Date(2025, 6, 1, 13, 30, 0, 0, loc), time.Date(2025, 6, 2, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		if got := tt.bucket.Next(tt.from); !got.Equal(tt.want) {
			t.Errorf("%v.Next(%v) = %v, want %v", tt.bucket, tt.from, got, tt.want)
		}
	}
}

func TestBucketNextAcrossDSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}

	// Spring forward 2025-03-09: the day is 23 hours long.
	short := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	if got := Bucket1d.Next(short); !got.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, loc)) {
		t.Errorf("Next over short day = %v, want next midnight", got)
	}

	// Fall back 2025-11-02: the day is 25 hours long. A fixed 24h step
	// from midnight lands at 23:00 the same day instead of the next
	// bucket start.
	long := time.Date(2025, 11, 2, 0, 0, 0, 0, loc)
	if got := Bucket1d.Next(long); !got.Equal(time.Date(2025, 11, 3, 0, 0, 0, 0, loc)) {
		t.Errorf("Next over long day = %v, want next midnight", got)
	}

	// Successive starts must always match Truncate of their own value so
	// series keys and event keys stay in the same domain.
	for _, b := range buckets {
		cur := b.Truncate(long)
		for i := 0; i < 30; i++ {
			next := b.Next(cur)
			if !next.After(cur) {
				t.Fatalf("%v.Next(%v) = %v did not advance", b, cur, next)
			}
			if !b.Truncate(next).Equal(next) {
				t.Fatalf("%v.Next(%v) = %v is not a bucket start", b, cur, next)
			}
			cur = next
		}
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		span  time.Duration
		width int
		want  Bucket
	}{
		{10 * time.Minute, 120, Bucket10s},   // 61 buckets fit in 120
		{time.Hour, 120, Bucket1m},           // 361 10s buckets would not
		{6 * time.Hour, 120, Bucket5m},       // 73 buckets
		{24 * time.Hour, 120, Bucket15m},     // 97 buckets
		{7 * 24 * time.Hour, 120, Bucket1d},  // hourly would need 169
		{90 * 24 * time.Hour, 120, Bucket1d}, // fallback for very long spans
	}

	for _, tt := range tests {
		if got := BucketFor(tt.span, tt.width); got != tt.want {
			t.Errorf("BucketFor(%v, %d) = %v, want %v", tt.span, tt.width, got, tt.want)
		}
	}
}

func TestResolvePreset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tf, ok := ResolvePreset("1h", now)
	if !ok {
		t.Fatal("expected preset 1h to resolve")
	}
	if !tf.End.Equal(now) {
		t.Errorf("End = %v, want %v", tf.End, now)
	}
	if got := tf.Duration(); got != time.Hour {
		t.Errorf("Duration = %v, want 1h", got)
	}

	if _, ok := ResolvePreset("fortnight", now); ok {
		t.Error("expected unknown preset to fail")
	}
}

func TestTimeframeContains(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tf := Timeframe{Start: start, End: start.Add(time.Hour)}

	if !tf.Contains(start) {
		t.Error("start should be inside the window")
	}
	if tf.Contains(tf.End) {
		t.Error("end should be outside the window")
	}
	if tf.Contains(start.Add(-time.Second)) {
		t.Error("before start should be outside the window")
	}
}
