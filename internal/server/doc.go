// Package server runs the short-lived local HTTP server used by "dive auth login".
//
// # Routing
//
// [BasicRouter] implements [Router] on [http.ServeMux] method patterns. [Middleware]
// added with Use wraps every route registered afterwards; [LogRequests] and [Recover]
// are the two the login flow installs.
//
// # OAuth Callback
//
// [OAuthHandler] serves the redirect URI path, checks the state parameter against the
// one sent with the authorization URL, exchanges the code for a token and reports the
// outcome once through [OAuthHandler.Result]. Later callbacks are rejected.
//
// [Serve] starts the listener and shuts it down when its context ends.
package server
