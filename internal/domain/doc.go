// Package domain defines the guild statistics snapshot and the boundary
// helpers that normalize values read from storage.
package domain
