// Package history persists the chat feed to a local SQLite transcript.
package history
