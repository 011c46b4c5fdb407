// Package devserver runs the development proxy.
//
// The server forwards every request to the upstream WordPress site, injects
// the live reload client into HTML pages and pushes reload messages to
// connected browsers over Server-Sent Events. Upstream failures are answered
// with 502 per request and never stop the server.
package devserver
