// Package udp is a small UDP messaging helper for local networks.
//
// A Manager owns one datagram socket at a time. It binds the socket, runs a
// receive loop that hands every datagram to a single registered listener,
// and sends text, bytes or flat key/value maps through a bounded pool of
// send workers. A Resolver derives the local broadcast address so messages
// can reach every host on the subnet.
//
// # Lifecycle
//
//  1. NewManager with a Config (port 9090 and host 255.255.255.255 by default)
//  2. Start binds the port with SO_REUSEADDR and SO_BROADCAST set
//  3. The receive loop delivers datagrams until Stop or a receive fault
//  4. Send* calls start the socket on demand and return immediately
//  5. Stop closes the socket, clears the listener and cancels queued sends
//
// # Delivery
//
// Datagrams are unreliable: no ordering, no retries, no acknowledgement.
// The receive buffer is DefaultBufferSize bytes and larger datagrams are
// truncated. Listeners run on the receive goroutine; a listener that touches
// shared state must hand the data to its own goroutine.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Host and port are
// updated independently, so a send racing with SetHost and SetPort may
// observe one change and not the other.
package udp
