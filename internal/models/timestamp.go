package models

import (
	"encoding/json"
	"time"

	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"
)

// TimestampLayout is the gateway's date format. Values are always UTC and
// carry no zone suffix.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a UTC instant with second precision.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, errors.NewFormatError("date", "expected YYYY-MM-DD HH:MM:SS, got "+s)
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) String() string {
	return t.Time.UTC().Format(TimestampLayout)
}

func (t Timestamp) Value() signing.Value {
	return signing.Text(t.String())
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.NewFormatError("date", "expected a string")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
