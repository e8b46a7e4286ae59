// Package netio provides the single shared UDP socket the transport server
// reads and writes through, tuned via golang.org/x/sys/unix on Linux.
package netio
