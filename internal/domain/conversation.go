package domain

// Role tags a conversation turn or prompt segment.
type Role string

const (
	// RoleSystem carries instructions to the model.
	RoleSystem Role = "system"
	// RoleUser carries caller input.
	RoleUser Role = "user"
	// RoleAssistant carries prior model output.
	RoleAssistant Role = "assistant"
)

// Turn is one conversation exchange supplied by the caller-owned store.
// The pipeline never persists turns; it only reads recent history.
type Turn struct {
	Role Role
	Text string
}
