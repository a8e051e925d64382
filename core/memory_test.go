package core

import (
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	Tassert(t, m.Len() == 0)
	m.AppendExchange("hi", "hello")
	m.AppendExchange("how are you?", "fine")
	Tassert(t, m.Len() == 4, "len %d", m.Len())

	snap := m.Snapshot()
	want := []Turn{
		{RoleHuman, "hi"}, {RoleAI, "hello"},
		{RoleHuman, "how are you?"}, {RoleAI, "fine"},
	}
	for i := range want {
		Tassert(t, snap[i] == want[i], "turn %d: got %+v want %+v", i, snap[i], want[i])
	}

	// the snapshot is a copy
	snap[0].Content = "changed"
	Tassert(t, m.Snapshot()[0].Content == "hi", "snapshot aliases memory")

	m.Append(Turn{Role: RoleHuman, Content: "single"})
	Tassert(t, m.Len() == 5)

	m.Clear()
	Tassert(t, m.Len() == 0)
	Tassert(t, len(m.Snapshot()) == 0)
}
