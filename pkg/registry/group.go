package registry

import (
	"github.com/getmockd/stubd/pkg/handler"
	"github.com/getmockd/stubd/pkg/matcher"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/rule"
)

// Group scopes rules under a set of overlays, e.g. a context path or a
// file root. Rules attached in a group are rewritten with its overlays and
// the rewritten rule is registered into the parent; the group itself keeps
// nothing. Nested groups apply their own overlays before their parent's.
type Group struct {
	parent   rule.Registrar
	overlays []overlay.Overlay
}

func newGroup(parent rule.Registrar, overlays []overlay.Overlay) *Group {
	return &Group{parent: parent, overlays: append([]overlay.Overlay(nil), overlays...)}
}

// Register rewrites rl with the group's overlays and hands the result to
// the parent.
func (g *Group) Register(rl *rule.Rule) error {
	if rl == nil || !rl.Attached() {
		return rule.ErrUnattached
	}
	return g.parent.Register(rl.WithOverlays(g.overlays...))
}

// Request creates an unattached rule owned by the group.
func (g *Group) Request(m matcher.Matcher, opts ...rule.Option) *rule.Rule {
	return rule.New(g, m, opts...)
}

// Response registers a rule answering every request of the group.
func (g *Group) Response(handlers ...handler.Handler) error {
	return g.Request(matcher.Any()).Response(handlers...)
}

// Group returns a nested group.
func (g *Group) Group(overlays ...overlay.Overlay) *Group {
	return newGroup(g, overlays)
}

// Overlays returns the group's own overlays.
func (g *Group) Overlays() []overlay.Overlay {
	return append([]overlay.Overlay(nil), g.overlays...)
}
