package ir

// Version constants for serialized artifacts and the engine.
const (
	// FormatVersion is the schema version of serialized timelines and journeys.
	FormatVersion = "1"

	// EngineVersion is the journeysim engine version.
	EngineVersion = "0.1.0"
)
