// Package authorize transparently injects Authorization headers into
// outgoing HTTP requests scoped to a configured host. At most one bearer
// rule and one basic rule are active at a time; installing a rule replaces
// any previous rule of the same kind.
package authorize

import (
	"encoding/base64"
	"net/http"
	"sync"

	"github.com/wolfej94/authkit/internal/hostutil"
)

// Rule rewrites requests bound for its scope host.
type Rule interface {
	// Host is the host component the rule is scoped to (no scheme or port).
	Host() string
	// Apply adds the Authorization header to req. Callers are responsible
	// for checking scope first.
	Apply(req *http.Request)

	kind() ruleKind
}

type ruleKind int

const (
	kindBearer ruleKind = iota
	kindBasic
)

// BearerRule injects "Authorization: Bearer <token>".
type BearerRule struct {
	ScopeHost string
	Token     string
}

func (r BearerRule) Host() string   { return r.ScopeHost }
func (r BearerRule) kind() ruleKind { return kindBearer }

func (r BearerRule) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.Token)
}

// BasicRule injects "Authorization: Basic <base64(email:password)>".
type BasicRule struct {
	ScopeHost string
	Email     string
	Password  string
}

func (r BasicRule) Host() string   { return r.ScopeHost }
func (r BasicRule) kind() ruleKind { return kindBasic }

func (r BasicRule) Apply(req *http.Request) {
	raw := r.Email + ":" + r.Password
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
}

// Authorizer holds the active rules. Safe for concurrent use; it is consulted
// on every outgoing request from any goroutine.
type Authorizer struct {
	mu     sync.RWMutex
	bearer *BearerRule
	basic  *BasicRule
}

// New creates an empty Authorizer.
func New() *Authorizer {
	return &Authorizer{}
}

// Install activates rule, first removing any existing rule of the same kind
// so stale credentials never stack.
func (a *Authorizer) Install(rule Rule) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch r := rule.(type) {
	case BearerRule:
		a.bearer = &r
	case *BearerRule:
		cp := *r
		a.bearer = &cp
	case BasicRule:
		a.basic = &r
	case *BasicRule:
		cp := *r
		a.basic = &cp
	}
}

// RemoveBearer deactivates the bearer rule, if any.
func (a *Authorizer) RemoveBearer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bearer = nil
}

// RemoveBasic deactivates the basic rule, if any.
func (a *Authorizer) RemoveBasic() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.basic = nil
}

// RemoveAll deactivates every rule.
func (a *Authorizer) RemoveAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bearer = nil
	a.basic = nil
}

// ActiveBasic returns the active basic rule, or nil. Sessions use this to
// answer IsAuthenticated in basic mode.
func (a *Authorizer) ActiveBasic() *BasicRule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.basic == nil {
		return nil
	}
	cp := *a.basic
	return &cp
}

// ActiveBearer returns the active bearer rule, or nil.
func (a *Authorizer) ActiveBearer() *BearerRule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bearer == nil {
		return nil
	}
	cp := *a.bearer
	return &cp
}

// Apply mutates req in place, adding the Authorization header when a rule is
// scoped to the request's host. Scope comparison is host-only: scheme, port,
// and path are ignored. Bearer wins when both rules match, mirroring the
// one-way token-to-basic transition: the basic rule only applies once the
// bearer rule has been removed. Reports whether a header was added.
func (a *Authorizer) Apply(req *http.Request) bool {
	a.mu.RLock()
	bearer, basic := a.bearer, a.basic
	a.mu.RUnlock()

	if req.URL == nil {
		return false
	}
	target := req.URL.String()
	if bearer != nil && hostutil.SameHost(bearer.ScopeHost, target) {
		bearer.Apply(req)
		return true
	}
	if basic != nil && hostutil.SameHost(basic.ScopeHost, target) {
		basic.Apply(req)
		return true
	}
	return false
}
