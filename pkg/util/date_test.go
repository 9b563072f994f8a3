package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-02-29")
	if !ok || got.Day() != 29 {
		t.Fatalf("unexpected %v %v", got, ok)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestMonthHelpers(t *testing.T) {
	cases := []struct {
		at      time.Time
		days    int
		toEnd   int
		monthID string
	}{
		{time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC), 29, 19, "2024-02"},
		{time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), 28, 0, "2023-02"},
		{time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), 31, 30, "2024-12"},
	}
	for _, c := range cases {
		if got := DaysInMonth(c.at); got != c.days {
			t.Fatalf("DaysInMonth(%v)=%d want %d", c.at, got, c.days)
		}
		if got := DaysToEndOfMonth(c.at); got != c.toEnd {
			t.Fatalf("DaysToEndOfMonth(%v)=%d want %d", c.at, got, c.toEnd)
		}
		if got := MonthKey(c.at); got != c.monthID {
			t.Fatalf("MonthKey(%v)=%s want %s", c.at, got, c.monthID)
		}
		if ms := MonthStart(c.at); ms.Day() != 1 || ms.Hour() != 0 || ms.Month() != c.at.Month() {
			t.Fatalf("MonthStart(%v)=%v", c.at, ms)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, a.Add(49*time.Hour)); got != 2 {
		t.Fatalf("got %d", got)
	}
}
