package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "seconds", d: 30 * time.Second, want: "30s"},
		{name: "zero", d: 0, want: "0s"},
		{name: "minutes", d: 45 * time.Minute, want: "45m"},
		{name: "hours and minutes", d: 3*time.Hour + 45*time.Minute, want: "3h 45m"},
		{name: "whole hours", d: 2 * time.Hour, want: "2h"},
		{name: "days", d: 62*time.Hour + 30*time.Minute, want: "2d 14h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestShortAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0x1234…abcd", ShortAddress("0x1234567890123456789012345678901234abcd"))
	assert.Equal(t, "0x01", ShortAddress("0x01"))
}

func TestFormatDiscordTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", FormatDiscordTimestamp(ts, "R"))
}
