// Package handlers contains the HTTP handlers, middleware and response helpers
// of the tracker API.
//
// Every handler type exposes RegisterRoutes(chi.Router) and is mounted by
// the server under its prefix:
//
//	r.Route("/api", func(r chi.Router) {
//	    r.Route("/cron", cronHandler.RegisterRoutes)
//	    r.Route("/student", func(r chi.Router) {
//	        studentHandler.RegisterRoutes(r)
//	        emailHandler.RegisterRoutes(r)
//	    })
//	})
//
// # Responses
//
// All endpoints answer with the same envelope:
//
//	{"success": true, "data": ..., "message": "...", "meta": {"timestamp": ..., "requestId": ...}}
//	{"success": false, "error": {"code": "not_found", "message": "..."}, "meta": {...}}
//
// Domain errors are mapped by kind: not found is 404, validation is 400,
// already-exists and in-progress are 409, upstream failures are 502 (503
// while the upstream is marked unavailable) and everything else is 500.
//
// # Health Checks
//
// CompositeHealthChecker runs named checks in parallel with a per-check timeout.
// Required checks gate /ready; optional ones only show up in /health:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("postgres", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddOptionalCheck("smtp", handlers.NewVerifyCheck(sender))
package handlers
