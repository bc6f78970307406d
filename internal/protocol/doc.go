// Package protocol owns the ttcp wire contract and its failure taxonomy.
//
// Ownership boundary:
// - error kinds (connection, protocol, io)
// - stream exact-length read/write primitives
// - frame/descriptor/ack codec
// - session handshake and exchange loop
package protocol
