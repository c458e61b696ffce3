package ir

// Version constants for the compiled document and the compiler.
const (
	// DocumentVersion is the layout of the rule document produced by the emitter.
	DocumentVersion = "1"

	// CompilerVersion is the kanachord compiler version.
	CompilerVersion = "0.1.0"
)
