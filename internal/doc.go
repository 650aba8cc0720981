// Package internal contains the implementation packages behind the mist CLI.
//
// This package follows Go's internal package convention: the runtime
// itself lives in pkg/ and can be imported by applications, while the
// preview server and its supporting layers stay private.
//
// # Package Overview
//
//   - config: Viper-backed configuration from .mist.yml, MIST_ variables and flags
//   - errors: typed runtime errors, the error collector and the overlay
//   - logging: structured logging on log/slog
//   - host/htmldoc: an in-memory HTML document implementing vdom.Document
//   - host/patch: records document mutations as replayable operations
//   - statefile: YAML state files applied to a reactive store
//   - watcher: debounced fsnotify watching for state files
//   - validation: checks for paths, hosts, URLs and browser input
//   - security: browser security headers
//   - middleware: recovery, request logging and CORS
//   - httpserver: route registration and graceful shutdown
//   - websocket: browser connections, broadcast and rate limiting
//   - server: the live preview server tying the above together
//   - demo: the counter, todo and about application served by default
//   - version: build information
//
// # Testing
//
// Every package has unit tests using testify. Property tests using gopter
// are behind the property build tag:
//
//	go test -tags property ./...
package internal
