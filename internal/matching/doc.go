// Package matching holds the predicates the matcher package builds on:
// path patterns and their captures, doublestar globs, header wildcards,
// compiled JSONPath conditions (ohler55/ojg) and XPath lookups
// (beevik/etree).
//
// Invalid patterns never panic; they simply do not match. Validate and
// Compile helpers let configuration be rejected at load time instead.
package matching
