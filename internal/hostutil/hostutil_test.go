package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"https://auth.example.com", "https://auth.example.com"},
		{"http://auth.example.com", "http://auth.example.com"},
		{"auth.example.com", "https://auth.example.com"},
		{"localhost:3000", "http://localhost:3000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"dev.localhost", "http://dev.localhost"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://auth.example.com/oauth/token", "auth.example.com"},
		{"https://auth.example.com:8443", "auth.example.com"},
		{"auth.example.com", "auth.example.com"},
		{"localhost:3000", "localhost"},
		{"http://[::1]:8080/path", "::1"},
		{"::1", "::1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Host(tt.in), "Host(%q)", tt.in)
	}
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://api.example.com/v1", "http://api.example.com:8080"))
	assert.True(t, SameHost("::1", "http://[::1]:8080/path"))
	assert.False(t, SameHost("https://api.example.com", "https://other.example.com"))
	assert.False(t, SameHost("", ""))
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, IsLocalhost("localhost"))
	assert.True(t, IsLocalhost("localhost:3000"))
	assert.True(t, IsLocalhost("dev.localhost"))
	assert.True(t, IsLocalhost("127.0.0.1"))
	assert.True(t, IsLocalhost("[::1]"))
	assert.True(t, IsLocalhost("[::1]:8080"))
	assert.False(t, IsLocalhost("example.com"))
	assert.False(t, IsLocalhost("10.0.0.1"))
}
