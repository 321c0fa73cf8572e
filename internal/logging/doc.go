// Package logging provides structured logging for easywifi.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the provisioning flow, the DNS responder and the portal.
//
// # Log Levels
//
//   - Debug: hex dumps of DNS datagrams, per-tick portal activity
//   - Info: state transitions, connection attempts, portal requests
//   - Warn: retries, access point setup failures
//   - Error: storage and socket failures
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// With an empty level the EASYWIFI_LOG_LEVEL environment variable is used; if
// that is empty too, a no-op logger is installed and nothing is printed.
//
// # Secrets
//
// Passwords must go through Secret, which masks the value.
package logging
