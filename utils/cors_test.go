package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost", true},
		{"http://localhost:8080", true},
		{"https://localhost:3000", true},

		{"http://192.168.1.10", true},
		{"http://192.168.1.10:8080", true},
		{"http://10.0.0.1", true},
		{"http://172.16.0.1", true},
		{"http://172.31.255.255:443", true},
		{"http://127.0.0.1:3000", true},
		{"http://169.254.1.1", true},

		{"http://nas.local", true},
		{"http://nas.local:8080", true},
		{"http://homeserver:8080", true},

		{"http://example.com", false},
		{"https://api.themoviedb.org", false},
		{"http://192.168.1.10.evil.com", false},
		{"http://8.8.8.8", false},
		{"http://1.1.1.1", false},

		{"", false},
		{"not-a-url", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, IsAllowedOrigin(tt.origin), "origin %q", tt.origin)
	}
}
