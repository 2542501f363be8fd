// Package http carries dChain messages over plain HTTP. Every message is one
// POST request to /{shardId} with the serialized message as body, the
// response body is the serialized response message.
//
// Server:
//
//	The server routes with chi. Besides POST /{shardId} it answers
//	GET /health with {"status":"ok"} for probes. Panics in a handler are turned
//	into a 500 by the Recoverer middleware, at log level debug every request is
//	logged with its status and duration. Close shuts the http.Server down and
//	Listen returns nil.
//
// Client:
//
//	Endpoints without scheme get http:// prepended. Requests are spread
//	round-robin over the endpoints, a failed request (transport error or non
//	200 status) is retried on the next endpoint up to RetryCount times. As with
//	the stream transports a retried Append may be applied twice.
package http
