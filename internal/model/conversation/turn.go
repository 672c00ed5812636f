package conversation

// Role identifies who produced a turn.
type Role string

// Role constants for conversation turns.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message within a session's history. Never mutated after
// creation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
