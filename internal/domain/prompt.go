package domain

// PromptSegment is one role-tagged piece of an assembled generation request.
type PromptSegment struct {
	Role Role
	Text string
}

// Prompt is the orchestrator output: ordered segments plus the context chunks
// actually included, in citation order. Citation markers emitted by the model
// ("[Chunk 2]") resolve by 1-based position into Chunks.
type Prompt struct {
	Segments []PromptSegment
	Chunks   []Chunk
}
