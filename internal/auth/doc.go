// Package auth restricts publishing to one Discord account.
//
// A Gate runs the OAuth 2.0 authorization code flow with PKCE (or accepts
// an implicit-flow token), caches the resulting token in a SessionStore and
// checks that the token belongs to the allowed account before exposing it.
// CallbackServer and ParseRedirect get the redirect parameters back into a
// terminal program.
package auth
