package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	unix := strconv.FormatInt(want.Unix(), 10)

	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339 zulu", "2026-03-01T12:00:00Z", want, true},
		{"fractional zulu", "2026-03-01T12:00:00.250Z", want.Add(250 * time.Millisecond), true},
		{"offset", "2026-03-01T14:00:00+02:00", want, true},
		{"naive iso", "2026-03-01T12:00:00.5", want.Add(500 * time.Millisecond), true},
		{"naive space", "2026-03-01 12:00:00", want, true},
		{"unix seconds", unix, want, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
		{"negative unix", "-5", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}
