// Package httputil provides the JSON response helpers shared by every HTTP
// handler in the engine. All API responses go through these so the error
// envelope stays uniform and internals never leak to clients.
package httputil
