package core

// Role is who produced a Turn.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Turn is one message of the conversation.
type Turn struct {
	Role    Role
	Content string
}

// Memory is the ordered conversation log.  It grows without bound
// for the life of a session and is replayed in full to streaming
// providers.  Memory is not safe for concurrent use on its own; the
// Oracle serializes access.
type Memory struct {
	turns []Turn
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds one turn.
func (m *Memory) Append(turn Turn) {
	m.turns = append(m.turns, turn)
}

// AppendExchange adds a human turn immediately followed by the ai
// turn that answered it.
func (m *Memory) AppendExchange(human, ai string) {
	m.turns = append(m.turns,
		Turn{Role: RoleHuman, Content: human},
		Turn{Role: RoleAI, Content: ai},
	)
}

// Snapshot returns a copy of the turns in conversational order.
func (m *Memory) Snapshot() []Turn {
	return append([]Turn(nil), m.turns...)
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	return len(m.turns)
}

// Clear empties the log.
func (m *Memory) Clear() {
	m.turns = nil
}
