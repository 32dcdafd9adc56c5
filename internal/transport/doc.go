// Package transport connects an engine to a server: HTTP carries commands
// over the REST interface and EventFeed reads the websocket event stream.
package transport
