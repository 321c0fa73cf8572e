// Package credentials persists the Wi-Fi network name and password.
//
// The record is a single flat file:
//
//	Encode(ssid) 0x01 Encode(password) 0x00
//
// where Encode is a positional additive obfuscation keyed by a small seed
// (default 4). It keeps the password out of plain sight in a hex dump and is
// not encryption. Records never exceed 68 bytes.
package credentials
