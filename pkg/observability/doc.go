/*
Package observability turns interpreter lifecycle hooks into metrics and logs.

Metrics registers Prometheus collectors and returns a domain.LifecycleHooks that feeds
them; LogHooks writes the same notifications to a slog.Logger. Combine both with
domain.CombineHooks and pass the result to arbor.WithLifecycleHooks.
*/
package observability
