package executor

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ooblab/serclient/internal/command"
	"github.com/ooblab/serclient/internal/wire"
)

// captureSink records deferred packets.
type captureSink struct {
	mu      sync.Mutex
	packets []*wire.Packet
}

func (s *captureSink) SendLater(p *wire.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, p)
}

func (s *captureSink) all() []*wire.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.Packet(nil), s.packets...)
}

func waitDone(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("execution did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerSuccess(t *testing.T) {
	sink := &captureSink{}
	guid := uuid.New()
	r := NewRunner(command.Request{Command: "echo hello", GUID: guid}, 10*time.Second, sink, nil, nil)

	r.Start()
	waitDone(t, r)

	resp := r.ResponsePacket()
	require.NotNil(t, resp)
	assert.Equal(t, wire.Response, resp.Command)
	assert.Equal(t, wire.Success, resp.Outcome)
	assert.Equal(t, guid, resp.GUID)
	assert.Equal(t, "hello\n", string(resp.Body))

	deferred := sink.all()
	require.Len(t, deferred, 1)
	assert.Equal(t, wire.AuthResponse, deferred[0].Command)
	assert.Equal(t, guid, deferred[0].GUID)
}

func TestRunnerCommandFailure(t *testing.T) {
	sink := &captureSink{}
	r := NewRunner(command.Request{Command: "exit 3", GUID: uuid.New()}, 10*time.Second, sink, nil, nil)

	r.Start()
	waitDone(t, r)

	resp := r.ResponsePacket()
	require.NotNil(t, resp)
	assert.Equal(t, wire.Error, resp.Outcome)
	require.Len(t, sink.all(), 1)
}

func TestRunnerTimeout(t *testing.T) {
	sink := &captureSink{}
	r := NewRunner(command.Request{Command: "sleep 30", GUID: uuid.New()}, 100*time.Millisecond, sink, nil, nil)

	r.Start()
	waitDone(t, r)

	resp := r.ResponsePacket()
	require.NotNil(t, resp)
	assert.Equal(t, wire.Error, resp.Outcome)
	assert.Contains(t, string(resp.Body), "timed out")
}

func TestRunnerRemovesAttachment(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "attach-*")
	require.NoError(t, err)
	_, err = f.WriteString("payload")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	sink := &captureSink{}
	r := NewRunner(command.Request{
		Command:    "cat \"$SERCLIENT_BINARY_FILE\"",
		GUID:       uuid.New(),
		BinaryPath: f.Name(),
	}, 10*time.Second, sink, nil, nil)

	r.Start()
	waitDone(t, r)

	resp := r.ResponsePacket()
	require.NotNil(t, resp)
	assert.Equal(t, wire.Success, resp.Outcome)
	assert.Equal(t, "payload", string(resp.Body))

	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err), "attachment should be deleted after the run")
}

func TestCompleted(t *testing.T) {
	guid := uuid.New()
	resp := wire.NewResponse(guid, wire.Error, nil)
	c := NewCompleted(resp)

	assert.False(t, c.IsRunning())
	assert.Same(t, resp, c.ResponsePacket())
}

func TestFactorySpawnStartsExecution(t *testing.T) {
	sink := &captureSink{}
	f := NewFactory(10*time.Second, nil, nil)

	ex := f.Spawn(command.Request{Command: "true", GUID: uuid.New()}, sink)
	deadline := time.Now().Add(10 * time.Second)
	for ex.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("spawned execution did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, ex.ResponsePacket())
	assert.Equal(t, wire.Success, ex.ResponsePacket().Outcome)
}
