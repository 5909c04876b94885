package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

type stubAsker struct {
	answer *entities.Answer
	err    error
	asked  []string
	k      int
}

func (s *stubAsker) Answer(ctx context.Context, question string, k int) (*entities.Answer, error) {
	s.asked = append(s.asked, question)
	s.k = k
	return s.answer, s.err
}

func sized(t *testing.T, asker Asker) Model {
	t.Helper()
	m := New(context.Background(), asker, 3)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

func TestModel_LoadingUntilSized(t *testing.T) {
	m := New(context.Background(), &stubAsker{}, 0)
	assert.Equal(t, "Loading...", m.View())

	m = sized(t, &stubAsker{})
	assert.Contains(t, m.View(), "No questions yet.")
}

func TestModel_AskAndRenderAnswer(t *testing.T) {
	asker := &stubAsker{answer: &entities.Answer{
		Text:    "main prints a greeting",
		Sources: []entities.Source{{File: "cmd/main.go", Excerpt: "func main()"}},
	}}
	m := sized(t, asker)
	m.input.SetValue("what does main do?")

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	// Enter while an answer is pending does nothing.
	m.input.SetValue("another")
	_, again := press(t, m, tea.KeyEnter)
	assert.Nil(t, again)

	msg := m.ask("what does main do?")()
	updated, _ := m.Update(msg)
	m = updated.(Model)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"what does main do?"}, asker.asked)
	assert.Equal(t, 3, asker.k)

	view := m.View()
	assert.Contains(t, view, "Q: what does main do?")
	assert.Contains(t, view, "main prints a greeting")
	assert.Contains(t, view, "cmd/main.go")
	assert.Contains(t, view, "Answered with 1 sources.")
}

func TestModel_ShowsErrors(t *testing.T) {
	m := sized(t, &stubAsker{err: errors.New("llm offline")})

	updated, _ := m.Update(m.ask("q")())
	m = updated.(Model)
	assert.Contains(t, m.View(), "llm offline")
}

func TestModel_EmptyQuestionIgnored(t *testing.T) {
	asker := &stubAsker{}
	m := sized(t, asker)
	m.input.SetValue("   ")

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Empty(t, asker.asked)
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, &stubAsker{})
	m.input.SetValue("EXIT")
	_, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = press(t, sized(t, &stubAsker{}), tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
