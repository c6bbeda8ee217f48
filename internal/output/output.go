// Package output maps library errors to CLI exit codes and renders them.
package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/wolfej94/authkit"
	"github.com/wolfej94/authkit/keys"
	"github.com/wolfej94/authkit/store"
)

// Exit codes.
const (
	ExitOK          = 0 // Success
	ExitUsage       = 1 // Invalid arguments or flags
	ExitAuth        = 2 // Authentication failed or not authenticated
	ExitDenied      = 3 // Presence check denied
	ExitRateLimit   = 4 // Rate limited (429)
	ExitNetwork     = 5 // Connection/DNS/timeout error
	ExitServer      = 6 // Server returned error
	ExitStore       = 7 // Credential store unavailable
	ExitUnsupported = 8 // Operation not supported by the active method
)

// ExitCodeFor returns the exit code for err.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, store.ErrPresenceDenied):
		return ExitDenied
	case errors.Is(err, authkit.ErrUnsupportedOperation):
		return ExitUnsupported
	case errors.Is(err, keys.ErrKeyNotFound), errors.Is(err, store.ErrNotFound):
		return ExitAuth
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrEnclaveUnavailable):
		return ExitStore
	}
	var ae *authkit.Error
	if errors.As(err, &ae) {
		switch ae.Code {
		case authkit.CodeTransport:
			return ExitNetwork
		case authkit.CodeAuthenticationFailed:
			if ae.HTTPStatus == 429 {
				return ExitRateLimit
			}
			if ae.HTTPStatus >= 500 {
				return ExitServer
			}
			return ExitAuth
		case authkit.CodeParse:
			return ExitServer
		case authkit.CodeUnsupported:
			return ExitUnsupported
		}
	}
	return ExitServer
}

// Render writes a human-readable error line with an actionable hint where one
// exists.
func Render(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err)
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Run: authkit login"
	case errors.Is(err, keys.ErrKeyNotFound):
		return "Run: authkit key generate"
	case errors.Is(err, store.ErrPresenceDenied):
		return "Approve the presence prompt to access protected credentials"
	case errors.Is(err, store.ErrUnavailable):
		return "Check keyring availability, or retry with --no-keyring"
	}
	var ae *authkit.Error
	if errors.As(err, &ae) && ae.Code == authkit.CodeTransport {
		return "Check your network connection and the configured endpoint"
	}
	return ""
}
