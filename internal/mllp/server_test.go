package mllp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler answers each message with ACK| plus the received payload and
// records everything it saw.
type echoHandler struct {
	mu       sync.Mutex
	received []string
}

func (h *echoHandler) Process(_ context.Context, message []byte) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, string(message))
	return []byte("ACK|" + string(message))
}

func (h *echoHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()

	srv := NewServer(0, handler)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})
	return srv
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var accum []byte
	chunk := make([]byte, 1024)
	for {
		payload, rest, ok := ExtractFrame(accum)
		accum = rest
		if ok {
			return payload
		}

		n, err := conn.Read(chunk)
		require.NoError(t, err)
		accum = append(accum, chunk[:n]...)
	}
}

func TestServer_RoundTrip(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(Wrap([]byte("MSH|hello")))
	require.NoError(t, err)

	assert.Equal(t, []byte("ACK|MSH|hello"), readFrame(t, conn))
	assert.Equal(t, []string{"MSH|hello"}, handler.messages())
}

func TestServer_FrameSplitAcrossWrites(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	full := Wrap([]byte("MSH|split|message"))
	for i := 0; i < len(full); i += 3 {
		end := i + 3
		if end > len(full) {
			end = len(full)
		}
		_, err = conn.Write(full[i:end])
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, []byte("ACK|MSH|split|message"), readFrame(t, conn))
}

func TestServer_MultipleFramesInOneWrite(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	burst := append(Wrap([]byte("MSH|one")), Wrap([]byte("MSH|two"))...)
	_, err = conn.Write(burst)
	require.NoError(t, err)

	assert.Equal(t, []byte("ACK|MSH|one"), readFrame(t, conn))
	assert.Equal(t, []byte("ACK|MSH|two"), readFrame(t, conn))
	assert.Equal(t, []string{"MSH|one", "MSH|two"}, handler.messages())
}

func TestServer_SequentialMessagesOnOneConnection(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	for i := 1; i <= 3; i++ {
		msg := fmt.Sprintf("MSH|seq%d", i)
		_, err = conn.Write(Wrap([]byte(msg)))
		require.NoError(t, err)
		assert.Equal(t, []byte("ACK|"+msg), readFrame(t, conn))
	}

	assert.Equal(t, []string{"MSH|seq1", "MSH|seq2", "MSH|seq3"}, handler.messages())
}

func TestServer_ConcurrentConnections(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn, err := net.Dial("tcp", srv.Addr())
			require.NoError(t, err)
			defer conn.Close()

			msg := fmt.Sprintf("MSH|conn%d", i)
			_, err = conn.Write(Wrap([]byte(msg)))
			require.NoError(t, err)
			assert.Equal(t, []byte("ACK|"+msg), readFrame(t, conn))
		}(i)
	}
	wg.Wait()

	assert.Len(t, handler.messages(), 4)
}

func TestServer_SurvivesAbruptDisconnect(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	first, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	_, err = first.Write([]byte{StartBlock, 'M', 'S', 'H'})
	require.NoError(t, err)
	first.Close()

	// The listener keeps accepting after a client drops mid-frame.
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(Wrap([]byte("MSH|after")))
	require.NoError(t, err)
	assert.Equal(t, []byte("ACK|MSH|after"), readFrame(t, conn))
}

func TestClient_SendReceivesAck(t *testing.T) {
	handler := &echoHandler{}
	srv := startTestServer(t, handler)

	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	if host == "::" || host == "" {
		host = "127.0.0.1"
	}

	ack, err := NewClient(host, port).Send([]byte("MSH|via-client"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ACK|MSH|via-client"), ack)
}
