package authorize

import "net/http"

// Transport is an http.RoundTripper that applies the authorizer's rules to
// each request before handing it to the base transport. Requests outside the
// scoped host pass through untouched. It performs no I/O of its own.
type Transport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
	// Auth supplies the active rules.
	Auth *Authorizer
}

// NewTransport wraps base with auth. base may be nil.
func NewTransport(auth *Authorizer, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Auth: auth}
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// mutation, as required by the RoundTripper contract.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Auth != nil {
		clone := req.Clone(req.Context())
		if t.Auth.Apply(clone) {
			req = clone
		}
	}
	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
