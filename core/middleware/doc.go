// Package middleware contains HTTP middleware for the Fiber application.
//
//   - auth: API key validation for the sync and metrics endpoints.
//   - rayid: a per-request id, echoed in the X-Ray-ID response header and
//     attached to request logs.
package middleware
