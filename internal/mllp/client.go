package mllp

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Client sends one framed message per call and reads the acknowledgment
// frame back. Used by the synthetic producer and integration tests.
type Client struct {
	host    string
	port    int
	timeout time.Duration
}

func NewClient(host string, port int) *Client {
	return &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
	}
}

// Send connects, writes the MLLP-wrapped message and returns the unframed
// acknowledgment payload.
func (c *Client) Send(message []byte) ([]byte, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("bağlantı hatası %s: %w", addr, err)
	}
	defer conn.Close()

	slog.Debug("MLLP sunucusuna bağlandı", "address", addr)

	conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write(Wrap(message)); err != nil {
		return nil, fmt.Errorf("mesaj gönderme hatası: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.timeout))

	var accum []byte
	chunk := make([]byte, 4096)
	for {
		payload, rest, ok := ExtractFrame(accum)
		accum = rest
		if ok {
			return payload, nil
		}

		n, err := conn.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("ACK okuma hatası: %w", err)
		}
		accum = append(accum, chunk[:n]...)
	}
}
