// Package provision runs the device's Wi-Fi provisioning cycle.
//
// A Provisioner tries the stored network (or a fallback when nothing is
// stored). When that fails it opens a temporary access point, answers DNS
// with its own address, serves the captive portal until a credential is
// submitted, tears the access point down and tries again with the new
// credential. Each Start call is bounded: after more than EscapeConnect
// connect attempts it gives up.
//
// Progress is visible through the status indicator and through Observe:
//
//	green   connected
//	orange  no stored credentials
//	blue    connecting
//	red     failed to connect
//	purple  access point open
//	cyan    a client joined the access point
//
// The loop is single-threaded. Time comes from a Clock and sockets from a
// Transport so tests can drive it without sleeping or binding ports.
package provision
