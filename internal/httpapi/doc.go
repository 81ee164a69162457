// Package httpapi exposes the engine and the member directory over HTTP.
// Every response body is a {message, data} envelope.
package httpapi
