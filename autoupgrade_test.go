package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionPrefersEmbedded(t *testing.T) {
	saved := appVersion
	t.Cleanup(func() { appVersion = saved })

	appVersion = "v1.4.2"
	assert.Equal(t, "v1.4.2", getVersion())

	// テストバイナリにはモジュールのバージョンが入らない
	appVersion = ""
	assert.NotEmpty(t, getVersion())
}

func TestSelfUpdateVersionGate(t *testing.T) {
	saved := appVersion
	t.Cleanup(func() { appVersion = saved })

	tests := []struct {
		name    string
		version string
		wantErr string
	}{
		{"development build", "(devel)", ""},
		{"no build info", "unknown", ""},
		{"unparsable version", "not-a-version", "parse version"},
		{"garbage suffix", "v1.2.x", "parse version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appVersion = tt.version

			updated, err := selfUpdate(githubRepo, "")

			assert.False(t, updated)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), tt.version)
		})
	}
}
