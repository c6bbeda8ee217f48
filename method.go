package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// Credential is the parsed result of a successful login or refresh.
// RefreshToken is empty for methods without refresh capability.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Method is one of the closed set of authentication strategies. Each variant
// fixes its own wire shape; exactly one method is active per session.
type Method interface {
	// Name identifies the variant for logging and persistence.
	Name() string
	// LoginRequest builds the login call for the given endpoint URL.
	LoginRequest(ctx context.Context, url, email, password string) (*http.Request, error)
	// ParseLogin decodes a 2xx login response body.
	ParseLogin(body []byte) (Credential, error)
}

// Refresher is implemented by methods that can exchange a refresh token for
// a new credential pair. Only OAuth qualifies.
type Refresher interface {
	Method
	RefreshRequest(ctx context.Context, url, refreshToken string) (*http.Request, error)
	ParseRefresh(body []byte) (Credential, error)
}

func jsonRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// OAuth is the OAuth2 resource-owner password grant, the only variant with
// refresh capability.
type OAuth struct {
	ClientID     string
	ClientSecret string
}

func (OAuth) Name() string { return "oauth" }

func (m OAuth) LoginRequest(ctx context.Context, url, email, password string) (*http.Request, error) {
	body := struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		GrantType    string `json:"grant_type"`
	}{email, password, m.ClientID, m.ClientSecret, "password"}
	return jsonRequest(ctx, url, body)
}

func (OAuth) ParseLogin(body []byte) (Credential, error) {
	return parseOAuthResponse(body)
}

func (m OAuth) RefreshRequest(ctx context.Context, url, refreshToken string) (*http.Request, error) {
	body := struct {
		RefreshToken string `json:"refresh_token"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		GrantType    string `json:"grant_type"`
	}{refreshToken, m.ClientID, m.ClientSecret, "refresh_token"}
	return jsonRequest(ctx, url, body)
}

func (OAuth) ParseRefresh(body []byte) (Credential, error) {
	return parseOAuthResponse(body)
}

func parseOAuthResponse(body []byte) (Credential, error) {
	var resp struct {
		TokenType    string `json:"token_type"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Credential{}, errParse(err)
	}
	if resp.AccessToken == "" {
		return Credential{}, errParse(errMissingField("access_token"))
	}
	return Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// LightweightToken exchanges email and password for a single opaque token
// using a flat response shape. No refresh capability; a refresh_token field
// in the response is ignored rather than persisted.
type LightweightToken struct{}

func (LightweightToken) Name() string { return "lightweight" }

func (LightweightToken) LoginRequest(ctx context.Context, url, email, password string) (*http.Request, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return jsonRequest(ctx, url, body)
}

func (LightweightToken) ParseLogin(body []byte) (Credential, error) {
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Credential{}, errParse(err)
	}
	if resp.AccessToken == "" {
		return Credential{}, errParse(errMissingField("access_token"))
	}
	// Refresh token deliberately dropped: the variant cannot use it.
	return Credential{AccessToken: resp.AccessToken}, nil
}

// LegacyToken exchanges email and password for a single opaque token whose
// response nests the token under a "data" envelope. No refresh capability.
type LegacyToken struct{}

func (LegacyToken) Name() string { return "legacy" }

func (LegacyToken) LoginRequest(ctx context.Context, url, email, password string) (*http.Request, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return jsonRequest(ctx, url, body)
}

func (LegacyToken) ParseLogin(body []byte) (Credential, error) {
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Credential{}, errParse(err)
	}
	if resp.Data.Token == "" {
		return Credential{}, errParse(errMissingField("data.token"))
	}
	return Credential{AccessToken: resp.Data.Token}, nil
}

// Basic performs no network login; authentication records email and password
// directly into the request-authorization pipeline. Switching a token-based
// session to Basic is a one-way transition (see Session.SwitchToBasic).
type Basic struct{}

func (Basic) Name() string { return "basic" }

func (Basic) LoginRequest(ctx context.Context, url, email, password string) (*http.Request, error) {
	return nil, errUnsupported("network login")
}

func (Basic) ParseLogin(body []byte) (Credential, error) {
	return Credential{}, errUnsupported("network login")
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing field " + string(e) }

func errMissingField(name string) error { return missingFieldError(name) }
