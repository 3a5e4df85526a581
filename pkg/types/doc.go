// Package types defines the contracts shared by the pantry engine: the
// persistence and mapping adapters it consumes, the response and error model
// it produces, the request capabilities bulk and paged operations rely on,
// and the application Config used to select a persistence backend.
package types
