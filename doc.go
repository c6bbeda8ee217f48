/*
Package authkit manages the full credential lifecycle for a client that
authenticates against a remote HTTP service: logging in with one of several
authentication methods, persisting tokens across two secure storage tiers,
transparently attaching Authorization headers to outgoing requests, and
proving key possession by signing server challenges.

# Session

Session is the orchestrator. It is configured with an endpoint, an
authentication method, and a two-tier secure store:

	st, err := store.Open(ctx, store.Options{
		Service:  "com.example.app",
		Dir:      dir,
		Prompt:   "Unlock to access your account",
		Prompter: prompter,
	})
	session, err := authkit.New(authkit.Config{
		Endpoint:  "https://api.example.com",
		Method:    authkit.OAuth{ClientID: id, ClientSecret: secret},
		Store:     st,
		LoginPath: "/oauth/token",
	})

	err = session.Authenticate(ctx, email, password)

After a successful login the bearer token lives in the standard tier, the
refresh token (OAuth only) in the protected tier, and requests made through
session.Client() to the endpoint host carry the Authorization header
automatically. Reauthenticate exchanges the stored refresh token for a new
pair; any failure during refresh wipes stored credentials so the session
never stays half refreshed. Deauthenticate wipes both tiers, destroying the
signing keypair along with the tokens. A Session constructed over a store
that already holds credentials adopts them, so a new process authorizes
requests without logging in again.

# Methods

Four mutually exclusive methods are supported: OAuth (password grant with
refresh), LightweightToken and LegacyToken (single opaque token, differing
wire shapes, no refresh), and Basic, which records email and password
directly into the request pipeline without any network call. Switching a
token-based session to Basic is a one-way transition.

# Events

Session lifecycle changes are published on an explicit broker with
best-effort delivery:

	events, cancel := session.Events().Subscribe()
	defer cancel()

# Proof of possession

The keys package holds an RSA keypair in the protected tier and signs
server-issued challenges; see keys.Custodian.
*/
package authkit
