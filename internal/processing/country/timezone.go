package country

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is how the local time of each timezone is rendered.
const TimestampLayout = "2006-01-02 15:04:05 MST"

var offsetLabel = regexp.MustCompile(`^UTC([+-])(\d{1,2})(?::(\d{2}))?$`)

// ResolveTimezone maps a REST Countries timezone label to a location. "UTC"
// and "UTC±HH:MM" become fixed zones; anything else must be an IANA name.
func ResolveTimezone(label string) (*time.Location, error) {
	if label == "" {
		return nil, fmt.Errorf("empty timezone label")
	}
	if label == "UTC" {
		return time.UTC, nil
	}

	if m := offsetLabel.FindStringSubmatch(label); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("offset out of range: %s", label)
		}
		offset := hours*3600 + minutes*60
		if offset == 0 {
			return time.UTC, nil
		}
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(label, offset), nil
	}

	loc, err := time.LoadLocation(label)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", label, err)
	}
	return loc, nil
}

// TimezoneSnapshot renders now in every resolvable label. Unknown labels are
// dropped.
func TimezoneSnapshot(labels []string, now time.Time) (map[string]string, []error) {
	out := make(map[string]string, len(labels))
	var errs []error
	for _, label := range labels {
		loc, err := ResolveTimezone(label)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[label] = now.In(loc).Format(TimestampLayout)
	}
	return out, errs
}
