// Package portal implements the captive portal's HTTP side.
//
// It is deliberately not a general HTTP server. Every response is
// "HTTP/1.1 200 OK" with an HTML body, connections are served one at a time
// from a polling loop, and routing is a substring match on the raw request
// line:
//
//	/list_networks             network picker
//	/enterPassword?network=X   password form for X
//	POST /connect              credential submission
//	/generate_204              meta-refresh to the device
//	anything else              landing page
//
// LegacyFormHandler serves the older single-form page instead, posting to
// /checkpass.php with XXID/XXPS fields.
package portal
