package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
		ok      bool
	}{
		{"forward", "F", CmdForward, true},
		{"lower case", "b", CmdBackward, true},
		{"trailing newline", "L\n", CmdLeft, true},
		{"surrounding spaces", "  r \t", CmdRight, true},
		{"stop", "S", CmdStop, true},
		{"empty", "", 0, false},
		{"whitespace only", " \n", 0, false},
		{"garbage", "xyz", 0, false},
		{"two tokens", "FF", 0, false},
		{"unknown letter", "X", 0, false},
		{"nul byte", "\x00", 0, false},
		{"label is not a command", "OBSTACLE", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "F", CmdForward.String())
	assert.Equal(t, "S", CmdStop.String())
	assert.False(t, Command('Q').Valid())
}
