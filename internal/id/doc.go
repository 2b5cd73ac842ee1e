// Package id generates identifiers: time-sortable ULIDs for rules, so that
// listing rules by id follows creation order, and UUIDs for requests.
package id
