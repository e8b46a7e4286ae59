// Package wire implements the on-the-wire packet format for the reliable
// UDP session transport: the 5-byte header codec and the 16-bit circular
// sequence number arithmetic it depends on.
package wire
