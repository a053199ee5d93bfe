package model

import (
	"regexp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestNewIDAtCarriesTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	id, err := ulid.Parse(NewIDAt(at))
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	if got := id.Timestamp(); !got.Equal(at) {
		t.Errorf("id timestamp = %v, want %v", got, at)
	}

	earlier := NewIDAt(at.Add(-time.Second))
	if earlier >= NewIDAt(at) {
		t.Error("ids do not sort by time")
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to PlaybackState
		want     bool
	}{
		{StateStopped, StatePlaying, true},
		{StateStopped, StatePaused, false},
		{StateStopped, StateStopped, true},
		{StatePlaying, StatePaused, true},
		{StatePlaying, StateStopped, true},
		{StatePlaying, StatePlaying, false},
		{StatePaused, StatePlaying, true},
		{StatePaused, StateStopped, true},
		{"bogus", StatePlaying, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		input   string
		want    LoopMode
		wantErr bool
	}{
		{"once", LoopOnce, false},
		{"", LoopOnce, false},
		{"LOOP", LoopLoop, false},
		{"pingpong", LoopPingPong, false},
		{"ping-pong", LoopPingPong, false},
		{"bounce", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLoopMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLoopMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLoopMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
