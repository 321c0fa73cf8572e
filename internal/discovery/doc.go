// Package discovery announces provisioned easywifi devices over mDNS and
// finds them again from another machine.
//
// Once a device has joined a network it may register an "_http._tcp"
// service whose TXT record carries "easywifi=1", its device id and the
// network name. The scanner browses "_http._tcp" and keeps only entries
// with that marker.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Println(d)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
