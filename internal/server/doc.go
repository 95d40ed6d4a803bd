// Package server implements the chat relay: a shared name registry, one
// session per WebSocket connection, an in-band slash-command interpreter,
// and the HTTP surface that serves the landing page and upgrade endpoint.
//
// The implementation is organized into specialized files for the
// registry, sessions, commands, configuration, routing, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
