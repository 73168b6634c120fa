// Package inventory persists what the bridge learned about each gateway:
// the bus devices it reported during bootstrap and the history of
// sessions run against it.
//
// Rows are keyed by gateway host so one database can serve several
// bridges. Timestamps are stored as RFC 3339 UTC text.
package inventory
