package ir

// Version constants for the IR and wire schema.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// CodecVersion is the wire codec version carried in persisted plans.
	CodecVersion = "0.1.0"
)
