package template

import (
	"encoding/json"

	"github.com/getmockd/stubd/pkg/request"
)

// Context holds the data a template is rendered against.
type Context struct {
	Request    *request.Request
	PathParams map[string]string
	Vars       map[string]string

	body interface{} // decoded JSON body, nil when the body is not JSON
}

// NewContext builds a template context for r. pathParams and vars may be
// nil.
func NewContext(r *request.Request, pathParams, vars map[string]string) *Context {
	ctx := &Context{
		Request:    r,
		PathParams: pathParams,
		Vars:       vars,
	}
	if r != nil && len(r.Body) > 0 {
		var body interface{}
		if err := json.Unmarshal(r.Body, &body); err == nil {
			ctx.body = body
		}
	}
	return ctx
}
