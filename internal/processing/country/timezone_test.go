package country

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestResolveTimezone(t *testing.T) {
	tests := []struct {
		label      string
		wantOffset int
		wantErr    bool
	}{
		{"UTC", 0, false},
		{"UTC+00:00", 0, false},
		{"UTC-00:00", 0, false},
		{"UTC+02:00", 2 * 3600, false},
		{"UTC+05:30", 5*3600 + 30*60, false},
		{"UTC-03:00", -3 * 3600, false},
		{"UTC+5", 5 * 3600, false},
		{"Asia/Tokyo", 9 * 3600, false},
		{"UTC+15:00", 0, true},
		{"Mars/Olympus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			loc, err := ResolveTimezone(tt.label)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveTimezone(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			_, offset := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC).In(loc).Zone()
			if offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", offset, tt.wantOffset)
			}
		})
	}
}

func TestTimezoneSnapshot(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	got, errs := TimezoneSnapshot([]string{"UTC", "UTC+02:00", "UTC-03:30", "Not/AZone"}, now)

	want := map[string]string{
		"UTC":       "2024-01-05 12:00:00 UTC",
		"UTC+02:00": "2024-01-05 14:00:00 UTC+02:00",
		"UTC-03:30": "2024-01-05 08:30:00 UTC-03:30",
	}
	if len(got) != len(want) {
		t.Fatalf("TimezoneSnapshot() = %v, want %v", got, want)
	}
	for label, ts := range want {
		if got[label] != ts {
			t.Errorf("snapshot[%s] = %q, want %q", label, got[label], ts)
		}
	}
	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1 for the unknown label", len(errs))
	}
}
