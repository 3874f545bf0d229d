// Package wire is the binary codec peers use to exchange messages.
//
// Messages travel as CBOR. The IR maps onto CBOR natively except for the two
// reference types: identifiers and peer identities are carried as private
// CBOR tags so they survive a round trip as distinct types. Encoding uses
// the core deterministic options, so equal values produce equal bytes.
package wire
