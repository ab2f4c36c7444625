package cli

import (
	"testing"
	"time"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-30 * time.Second), "30s ago"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.AddDate(0, 0, -2), "2d ago"},
		{now.Add(time.Minute), "0s ago"}, // clock skew clamps to now
	}
	for _, c := range cases {
		if got := FormatAge(c.t, now); got != c.want {
			t.Errorf("FormatAge(%s) = %q, want %q", c.t, got, c.want)
		}
	}
}

func TestFormatUntil(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "now"},
		{now.Add(-time.Minute), "now"},
		{now.Add(45 * time.Second), "in 45s"},
		{now.Add(10 * time.Minute), "in 10m"},
		{now.Add(90 * time.Minute), "in 1h30m"},
		{now.AddDate(0, 0, 3), "in 3d"},
	}
	for _, c := range cases {
		if got := FormatUntil(c.t, now); got != c.want {
			t.Errorf("FormatUntil(%s) = %q, want %q", c.t, got, c.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{15 * time.Minute, "15m"},
		{90 * time.Minute, "1.5h"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.d); got != c.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString(short) = %q", got)
	}
	if got := TruncateString("a very long filing title here", 10); got != "a very ..." {
		t.Errorf("TruncateString = %q", got)
	}
	if got := TruncateString("abcdef", 3); got != "abc" {
		t.Errorf("TruncateString tiny = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != "-" {
		t.Errorf("zero date = %q, want -", got)
	}
	d := time.Date(2024, 5, 3, 23, 59, 0, 0, time.UTC)
	if got := FormatDate(d); got != "2024-05-03" {
		t.Errorf("FormatDate = %q", got)
	}
}
