// Package ui provides terminal UI components for the easywifi CLI.
//
// It uses Bubble Tea and Lipgloss. Most output follows a "print and exit"
// pattern: result boxes for success, failure and warnings, and a typed
// confirmation before destructive operations. The Monitor is the one
// interactive view: a live display of a provisioning run showing the
// indicator colour, attempt counters and portal activity.
//
// # Logging Integration
//
// This package expects logging to be controlled via the EASYWIFI_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, so the
// UI output is displayed cleanly.
package ui
