package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a session id stamped with the current time.
func NewID() string {
	return NewIDAt(time.Now())
}

// NewIDAt returns a session id whose ULID timestamp is t, so ids sort in
// session start order.
func NewIDAt(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), ulid.DefaultEntropy())
	if err != nil {
		// t is outside the ULID time range.
		return ulid.Make().String()
	}
	return id.String()
}
