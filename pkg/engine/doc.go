// Package engine is the HTTP boundary of stubd.
//
// Handler adapts net/http requests to rule evaluation against a
// registry.Registry and writes the built response. Requests no rule
// matches get a JSON 404 ({"error":"no_match",...}) unless a default
// handler is configured; failing handlers produce a JSON 502.
//
// Server owns the listener lifecycle and Watcher swaps in a freshly built
// registry when configuration files change:
//
//	h := engine.NewHandler(reg, engine.WithMetrics(metrics.New()))
//	srv := engine.NewServer(engine.DefaultServerConfig(), h)
//	w := engine.NewWatcher(h, load, files)
//	err := srv.Run(ctx, w.Run)
package engine
