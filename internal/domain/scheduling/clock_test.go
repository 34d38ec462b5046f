package scheduling

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want Minute
	}{
		{"00:00", 0},
		{"01:30", 90},
		{"09:05", 545},
		{"23:59", 1439},
		{"24:00", 1440},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("Minute(%d).String() = %q, want %q", got, got.String(), tt.in)
		}
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{"", "9:00", "09:60", "24:01", "25:00", "ab:cd", "0900", "09-00"} {
		_, err := ParseClock(in)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ParseClock(%q): expected ErrValidation, got %v", in, err)
		}
	}
}

func TestMinute_JSON(t *testing.T) {
	data, err := json.Marshal(Interval{Start: 540, End: 570})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"start":"09:00","end":"09:30"}` {
		t.Errorf("unexpected json %s", data)
	}

	var iv Interval
	if err := json.Unmarshal([]byte(`{"start":"13:15","end":"14:00"}`), &iv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if iv.Start != 795 || iv.End != 840 {
		t.Errorf("unexpected interval %+v", iv)
	}

	if err := json.Unmarshal([]byte(`{"start":540}`), &iv); err == nil {
		t.Error("expected error for numeric time")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != "2025-03-14" || !d.Valid() {
		t.Errorf("unexpected date %q", d)
	}
	for _, in := range []string{"", "2025-3-14", "2025-02-30", "14/03/2025"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseDate(%q): expected ErrValidation, got %v", in, err)
		}
	}
}
