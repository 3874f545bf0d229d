// Package ir provides the value and message types shared by every other
// package: the sealed IRValue family, message envelopes with their kind
// policy table, the identifier rewriter, canonical JSON and digests.
//
// This package contains no peer behaviour. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Identifiers (IRID) and peer identities (IRPeer) are distinct value
//     types; plain IRInt literals are never treated as identifiers
//   - All JSON tags use snake_case
package ir
