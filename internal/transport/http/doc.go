// Package http contains the Chi HTTP handlers for the dashboard API.
//
// Handlers follow a uniform shape: a struct holding the service interface,
// a *slog.Logger and an *errors.ErrorHandler, with a Routes() method that
// returns a chi.Router. Successful responses use a {status, data, count}
// envelope; failures are RFC 7807 problem documents.
package http
