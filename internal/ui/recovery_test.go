package ui

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockModel quits as soon as it starts unless told to panic.
type mockModel struct {
	panicOnUpdate bool
	panicOnView   bool
	viewCount     int32
}

func (m *mockModel) Init() tea.Cmd {
	return func() tea.Msg { return "start" }
}

func (m *mockModel) Update(tea.Msg) (tea.Model, tea.Cmd) {
	if m.panicOnUpdate {
		panic("update panic test")
	}
	return m, tea.Quit
}

func (m *mockModel) View() string {
	if atomic.AddInt32(&m.viewCount, 1) > 3 && m.panicOnView {
		panic("view panic test")
	}
	return "Test UI"
}

func headless() []tea.ProgramOption {
	return []tea.ProgramOption{
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	}
}

func TestRecoveryHandler_NormalExit(t *testing.T) {
	handler := NewRecoveryHandler(zap.NewNop(), func() (tea.Model, []tea.ProgramOption) {
		return &mockModel{}, headless()
	})

	require.NoError(t, handler.RunWithRecovery(context.Background()))
	assert.Zero(t, handler.RestartCount())
}

func TestRecoveryHandler_RestartsAfterPanic(t *testing.T) {
	var created int32
	handler := NewRecoveryHandler(zap.NewNop(), func() (tea.Model, []tea.ProgramOption) {
		if atomic.AddInt32(&created, 1) == 1 {
			panic("constructor panic")
		}
		return &mockModel{}, headless()
	})
	handler.restartDelay = 5 * time.Millisecond

	require.NoError(t, handler.RunWithRecovery(context.Background()))
	assert.Equal(t, 1, handler.RestartCount())
	assert.Equal(t, int32(2), atomic.LoadInt32(&created))
}

func TestRecoveryHandler_GivesUp(t *testing.T) {
	handler := NewRecoveryHandler(zap.NewNop(), func() (tea.Model, []tea.ProgramOption) {
		panic("always")
	})
	handler.restartDelay = time.Millisecond
	handler.maxRestarts = 2

	err := handler.RunWithRecovery(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many times")
	assert.Equal(t, 3, handler.RestartCount())
}

func TestRecoveryHandler_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := NewRecoveryHandler(zap.NewNop(), func() (tea.Model, []tea.ProgramOption) {
		cancel()
		panic("crash during shutdown")
	})

	require.NoError(t, handler.RunWithRecovery(ctx))
}

func TestSafeModel(t *testing.T) {
	model := &mockModel{panicOnView: true}
	wrapper := NewSafeModel(model, zap.NewNop())

	assert.NotNil(t, wrapper.Init())
	assert.Equal(t, "Test UI", wrapper.View())

	atomic.StoreInt32(&model.viewCount, 10)
	assert.Equal(t, "UI Error: View crashed. Press Ctrl+C to exit.", wrapper.View())

	model.panicOnUpdate = true
	next, cmd := wrapper.Update(nil)
	assert.Nil(t, cmd)
	assert.Same(t, wrapper, next)
}
