package serclient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ooblab/serclient/internal/wire"
)

func TestRunAnswersAckOverMockDevice(t *testing.T) {
	dev := NewMockDevice()
	guid := uuid.New()
	dev.FeedPacket(wire.NewAck(guid))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	params := DefaultParams("")
	params.Device = dev
	params.RootDir = t.TempDir()
	go func() { done <- Run(ctx, params, nil) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(dev.WrittenPackets()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no ack transmitted")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	sent := dev.WrittenPackets()
	require.NotEmpty(t, sent)
	assert.Equal(t, wire.Ack, sent[0].Command)
	assert.Equal(t, guid, sent[0].GUID)
}

func TestRunFailsWhenPortCannotOpen(t *testing.T) {
	params := DefaultParams("/dev/does-not-exist-serclient")
	params.RootDir = t.TempDir()

	err := Run(context.Background(), params, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeOpenFailed))
}

func TestMockDeviceShortWrites(t *testing.T) {
	dev := NewMockDevice()
	dev.AcceptLimit = 3

	n, err := dev.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(dev.Written()))
}

func TestMockClock(t *testing.T) {
	c := NewMockClock(100)
	c.Step = 5

	assert.Equal(t, int64(100), c.Now())
	assert.Equal(t, int64(105), c.Now())
	c.Advance(50)
	assert.Equal(t, int64(160), c.Now())

	c.Fail = true
	assert.Equal(t, int64(-1), c.Now())
}

func TestMockExecutionLifecycle(t *testing.T) {
	ex := NewMockExecution()
	assert.True(t, ex.IsRunning())
	assert.Nil(t, ex.ResponsePacket())

	resp := wire.NewResponse(uuid.New(), wire.Success, nil)
	ex.Finish(resp)
	assert.False(t, ex.IsRunning())
	assert.Same(t, resp, ex.ResponsePacket())
}
