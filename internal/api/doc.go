// Package api provides the bridge's HTTP status server.
//
// It serves Prometheus metrics, a health endpoint for container probes,
// read-only views of the running devices, the bus-device inventory and
// session history, and a WebSocket stream of live bridge events.
//
//	GET /metrics                  Prometheus exposition
//	GET /api/v1/health            bridge status, 503 unless subscribed
//	GET /api/v1/devices           running devices
//	GET /api/v1/bus-devices       inventory (?gateway=)
//	GET /api/v1/sessions          session history (?gateway=&limit=)
//	GET /api/v1/ws                live events (values, acks, session)
//
// Stream events arrive as {"type":"event","channel":"acks","payload":{...}}.
// Clients may send {"type":"subscribe","channels":["values"]}, the matching
// unsubscribe, or {"type":"ping"}.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
