package output

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfej94/authkit"
	"github.com/wolfej94/authkit/keys"
	"github.com/wolfej94/authkit/store"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"presence denied", store.ErrPresenceDenied, ExitDenied},
		{"unsupported operation", authkit.ErrUnsupportedOperation, ExitUnsupported},
		{"missing credential", store.ErrNotFound, ExitAuth},
		{"missing key", keys.ErrKeyNotFound, ExitAuth},
		{"keyring unavailable", store.ErrUnavailable, ExitStore},
		{"enclave unavailable", store.ErrEnclaveUnavailable, ExitStore},
		{"transport", &authkit.Error{Code: authkit.CodeTransport}, ExitNetwork},
		{"bad credentials", authkit.AuthError(http.StatusUnauthorized), ExitAuth},
		{"rate limited", authkit.AuthError(http.StatusTooManyRequests), ExitRateLimit},
		{"server error", authkit.AuthError(http.StatusBadGateway), ExitServer},
		{"parse", &authkit.Error{Code: authkit.CodeParse}, ExitServer},
		{"wrapped sentinel", fmt.Errorf("refresh: %w", store.ErrPresenceDenied), ExitDenied},
		{"unknown", errors.New("boom"), ExitServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestRenderIncludesHint(t *testing.T) {
	var buf strings.Builder
	Render(&buf, fmt.Errorf("signing challenge: %w", keys.ErrKeyNotFound))

	out := buf.String()
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "authkit key generate")
}

func TestRenderNilIsSilent(t *testing.T) {
	var buf strings.Builder
	Render(&buf, nil)
	assert.Empty(t, buf.String())
}
