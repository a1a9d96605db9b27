// Package api implements the catalog's HTTP REST front door.
//
// This package provides:
//   - Entity endpoints for plants, devices and users (list, lookup, upsert)
//   - The narrow device status endpoint used by field agents
//   - Broker and main topic lookups
//   - Health and Prometheus metrics endpoints
//   - Middleware stack (request ID, logging, recovery, metrics, body limit)
//
// # Envelope
//
// Every response, including errors and unknown paths, carries the same JSON
// shape, and the HTTP status code always equals the "status" field:
//
//	{"success": bool, "message": string?, "content": any?, "status": int}
//
// Validation failures answer 400, unknown ids and paths 404 with a guidance
// message, and storage failures 500 with the underlying message.
package api
