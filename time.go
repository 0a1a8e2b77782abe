package jose

import (
	"fmt"
	"strconv"
	"time"
)

// NumericDate wraps time.Time for the RFC 7519 NumericDate representation:
// a JSON number counting seconds since the Unix epoch. Sub-second precision
// is dropped on encode so a round trip always compares equal.
type NumericDate struct {
	time.Time
}

// NewNumericDate creates a NumericDate from a time.Time, truncated to
// second precision.
func NewNumericDate(t time.Time) *NumericDate {
	return &NumericDate{t.Truncate(time.Second)}
}

// MarshalJSON encodes the date as Unix seconds.
func (date NumericDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(date.Unix(), 10)), nil
}

// UnmarshalJSON accepts both integer and fractional second counts;
// fractions are discarded.
func (date *NumericDate) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid numeric date %q: %w", string(b), err)
	}
	date.Time = time.Unix(int64(f), 0)
	return nil
}
