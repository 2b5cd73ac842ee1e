// Package config loads declarative rule sets and builds them into a
// registry.
//
// A rule set is a YAML document:
//
//	version: "1"
//	context: /api          # uri overlay for every rule below
//	fileRoot: fixtures     # relative to this file
//	files:                 # more rule sets, built after the rules
//	  - "mocks/**/*.yaml"
//	rules:
//	  - name: get-user
//	    request:
//	      method: GET
//	      uri: /users/{id}
//	    response:
//	      status: 200
//	      template: '{"id": "{{request.pathParam.id}}"}'
//	  - group:
//	      context: /v2
//	      rules:
//	        - response:
//	            file: v2.json
//
// Rules are evaluated in document order and the first match wins. Context
// and fileRoot never modify a rule in place: they become overlays of the
// group the document's rules are registered through.
//
// ${VAR} and ${VAR:-default} are expanded from the environment before
// parsing, and every document is validated against an embedded JSON Schema.
package config
