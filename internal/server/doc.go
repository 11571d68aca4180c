// Package server implements the HTTP and WebSocket transport for ChatPlus.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the gateway dispatch, routing, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
