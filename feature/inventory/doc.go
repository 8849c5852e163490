// Package inventory exposes inventory synchronization over HTTP.
//
// GET /sync/plan reports the changes a run would make, POST /sync/apply makes
// them, and GET /sync/last returns the report of the most recent apply. Both
// run endpoints require the unmatched query parameter (delete or skip); there
// is no default for what happens to destination entities absent from the
// source. Runs never overlap: a request arriving during a run gets 409.
package inventory
