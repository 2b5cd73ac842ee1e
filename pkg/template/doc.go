// Package template renders response bodies with {{expression}} substitution.
//
// # Built-in Values
//
//   - {{now}} - current time, RFC3339
//   - {{timestamp}} - Unix seconds; {{timestamp.unix_ms}} milliseconds
//   - {{uuid}} - random UUID v4; {{uuid.short}} its first 8 characters
//   - {{random.int}} or {{random.int(min, max)}} - random integer
//   - {{random.float}} or {{random.float(min, max, precision)}}
//   - {{random.string}} or {{random.string(N)}} - alphanumeric string
//   - {{sequence("name")}} or {{sequence("name", start)}} - counter
//
// # Request Values
//
//   - {{request.method}}, {{request.path}}, {{request.uri}}
//   - {{request.rawBody}} - body as received
//   - {{request.body.user.name}} - field of a JSON body (array indexes allowed)
//   - {{request.query.page}}, {{request.header.X-Token}}
//   - {{request.cookie.session}}, {{request.form.user}}
//   - {{request.pathParam.id}} - {name} segment or regex group of the matched URI
//
// # Variables
//
// Handlers may bind named values extracted from the request (a JSONPath,
// an XPath, a header...). They are available as {{var.name}}.
//
// # Functions
//
//   - {{upper(value)}}, {{lower(value)}}
//   - {{default(value, "fallback")}}
//
// A function argument is either a quoted literal or a value reference such
// as request.query.name or var.user.
//
// Unknown expressions render as the empty string.
package template
