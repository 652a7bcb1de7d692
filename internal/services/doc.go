// Package services talks to the Spotify Web API on behalf of the pipeline.
//
// # Spotify client
//
// [SpotifyService] issues every call through a [Requester], normally a
// gateway.Gateway, which throttles, retries and authorizes the request. The
// service only knows endpoints and response shapes and maps them onto the
// types in the models package.
//
// # Pagination
//
// [FetchAll] reads the first page of a paginated collection to learn the total,
// then requests the remaining offsets concurrently. A failed later page is
// logged and dropped; a failed first page fails the call.
//
// # Authentication
//
// [NewOAuthConfig] builds the authorization-code flow used by the login
// command. [TokenCredentials] adapts a stored [oauth2.Token] to the gateway,
// refreshing it when needed and reporting refreshed tokens so they can be
// persisted.
//
// # Error Handling
//
// Errors from the gateway keep their shared sentinels:
//   - [shared.ErrNotAuthenticated] : no usable token, or the token was rejected earlier
//   - [shared.ErrTokenExpired] : the API answered 401 or 403
//   - [shared.ErrRefreshFailed] : the refresh token was refused
//   - [shared.ErrAPIRequest] : any other failed request
package services
