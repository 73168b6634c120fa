// Package metrics exposes bridge activity as Prometheus metrics.
//
// A Metrics value implements the gateway session observer, so wiring it
// into a session is enough to track state transitions, received frames,
// bundle outcomes and bus devices. The bridge adds publish, command and
// reconnect counters on top.
//
// Every metric lives in a private registry rather than the global default,
// so tests can create as many instances as they like. Handler serves that
// registry in the Prometheus text format.
package metrics
