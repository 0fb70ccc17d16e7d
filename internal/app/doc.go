// Package app holds the application state shared by the CLI and the TUI.
package app
