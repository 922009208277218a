/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "18:30", want: 1110},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "9:3", wantErr: true},
		{in: "", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeOfDay(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00", "09:00", "10:15", "18:30"} {
		if got := MustTimeOfDay(s).String(); got != s {
			t.Fatalf("round trip %q = %q", s, got)
		}
	}
}

func TestTimeOfDayAdd(t *testing.T) {
	start := MustTimeOfDay("18:00")
	if end := start.Add(30); end != MustTimeOfDay("18:30") {
		t.Fatalf("18:00+30m = %s", end)
	}
	if end := start.Add(60); !end.After(MustTimeOfDay("18:30")) {
		t.Fatalf("18:00+60m should pass the closing boundary, got %s", end)
	}
}

func TestCalendarTodayUsesOperatingTimezone(t *testing.T) {
	// 2025-03-06 01:30 UTC is still 2025-03-05 in Buenos Aires (UTC-3).
	instant := time.Date(2025, 3, 6, 1, 30, 0, 0, time.UTC)
	cal, err := NewCalendarAt(DefaultTimezone, func() time.Time { return instant })
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}

	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if got := cal.Today(); !got.Equal(want) {
		t.Fatalf("Today() = %s, want %s", got, want)
	}
	if got := cal.TimeOfDayNow(); got != MustTimeOfDay("22:30") {
		t.Fatalf("TimeOfDayNow() = %s, want 22:30", got)
	}
}

func TestWeekEnd(t *testing.T) {
	monday := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := WeekEnd(monday); !got.Equal(want) {
		t.Fatalf("WeekEnd = %s, want %s", got, want)
	}
}

func TestParseDay(t *testing.T) {
	if _, err := ParseDay("05/03/2025"); err == nil {
		t.Fatal("expected error for non ISO day")
	}
	d, err := ParseDay("2025-03-05")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	if !d.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %s", d)
	}
}
