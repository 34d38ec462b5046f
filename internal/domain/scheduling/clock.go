package scheduling

import (
	"encoding/json"
	"fmt"
	"time"
)

// Minute is a naive minute-of-day. 24:00 (1440) is allowed as an exclusive end.
type Minute int

const MinutesPerDay Minute = 24 * 60

// ParseClock parses a zero-padded "HH:MM" value.
func ParseClock(s string) (Minute, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || m > 59 {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, s)
	}
	v := Minute(h*60 + m)
	if v > MinutesPerDay {
		return 0, fmt.Errorf("%w: time %q is past 24:00", ErrValidation, s)
	}
	return v, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m Minute) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Minute) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: time must be an HH:MM string", ErrValidation)
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Date is a naive calendar date in YYYY-MM-DD form.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}
	return Date(t.Format(dateLayout)), nil
}

func (d Date) Valid() bool {
	_, err := ParseDate(string(d))
	return err == nil
}

func (d Date) String() string { return string(d) }
