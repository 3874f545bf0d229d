// Package peer provides the addressable peers plans run against.
//
// A Worker owns a registry of objects keyed by identifier and applies the
// messages it receives to them. Workers find each other through a Network,
// an in-process directory that routes encoded messages by peer identity.
// Pointers are local handles to objects held by some peer; operations on a
// pointer become messages sent to the peer that holds the object.
package peer
