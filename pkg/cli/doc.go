// Package cli implements the stubd command line: serve, validate and
// version.
package cli
