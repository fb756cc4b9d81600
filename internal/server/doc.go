// Package server provides the HTTP server for the dashboard and API.
//
// It handles all HTTP concerns:
//
//   - Dashboard page: "/" rendered from the embedded template
//   - REST API: "/api/state", "/api/view" and "/api/refresh"
//   - Streaming: Server-Sent Events at "/api/sse" and a WebSocket at "/api/ws"
//   - Chart images: "/api/chart.svg" and "/api/chart.png"
//   - Operations: "/healthz" and "/metrics"
//
// Routing uses gorilla/mux; requests are logged at DEBUG through a
// gorilla/handlers formatter. The server supports graceful shutdown via
// context cancellation, with a 5-second timeout for in-flight requests.
package server
