package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestShutdownHandler_ClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"stream", "journal", "ui_sink"} {
		name := name
		sh.AddFunc(name, func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"ui_sink", "journal", "stream"}, order)
}

func TestShutdownHandler_JoinsErrors(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	boom := errors.New("boom")
	sh.AddFunc("ok", func() error { return nil })
	sh.AddFunc("bad", func() error { return boom })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
}

func TestShutdownHandler_Timeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error {
		<-release
		return nil
	})

	start := time.Now()
	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
	assert.Less(t, time.Since(start), time.Second)
}

func TestShutdownHandler_RunsOnce(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 0)
	calls := 0
	sh.AddFunc("svc", func() error {
		calls++
		return nil
	})

	require.NoError(t, sh.Shutdown(context.Background()))
	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, defaultShutdownTimeout, sh.timeout)
}
