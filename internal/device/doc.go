// Package device talks to the embedded temperature sensor over HTTP.
//
// This package is internal to ThermoBoard. It issues a single GET against the
// device's temperature endpoint and decodes the JSON body into a [Reading].
// Every failure is reported as a [*FetchError] whose [ErrorKind] tells apart
// HTTP status failures, transport failures and malformed bodies.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with connection pooling and a body size limit
//   - [Reading]: one temperature sample with its epoch-millisecond timestamp
//   - [FetchError]: typed fetch failure
//   - [EndpointURL]: builds the endpoint URL from a configured device address
package device
