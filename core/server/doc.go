// Package server holds the HTTP server configuration.
//
// The serve command builds its fiber application from Config: the listen
// address, the optional API key enforced by the auth middleware, and the
// read and write timeouts.
package server
