package mllp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// Handler processes one unframed HL7 message and returns the acknowledgment
// to write back. Implementations must always return a response and must be
// safe for concurrent use by multiple connections.
type Handler interface {
	Process(ctx context.Context, message []byte) []byte
}

type remoteAddrKey struct{}

// RemoteAddr returns the remote address of the connection a handler is
// serving, when known.
func RemoteAddr(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}

// Server accepts MLLP connections and runs an independent processing loop per
// connection. Within a connection frames are handled strictly in order; one
// frame is fully round-tripped before the next is read.
type Server struct {
	port     int
	handler  Handler
	listener net.Listener
}

func NewServer(port int, handler Handler) *Server {
	return &Server{
		port:    port,
		handler: handler,
	}
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port dinlenemedi %s: %w", addr, err)
	}
	s.listener = listener

	slog.Info("MLLP sunucu başlatıldı", "port", s.port, "address", addr)

	go s.acceptConnections(ctx)
	return nil
}

func (s *Server) acceptConnections(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			slog.Error("Bağlantı kabul hatası", "error", err)
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

// handleConnection reads available bytes into a growable buffer, extracts
// complete frames, and answers each synchronously. A zero-byte read closes
// the connection; undelimited leftover bytes are discarded silently. Errors
// terminate only this connection, never the listener.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	ctx = context.WithValue(ctx, remoteAddrKey{}, remoteAddr)
	slog.Info("Yeni MLLP bağlantısı", "remoteAddr", remoteAddr)
	defer slog.Info("MLLP bağlantısı kapatıldı", "remoteAddr", remoteAddr)

	var accum []byte
	chunk := make([]byte, 4096)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := conn.Read(chunk)
		if err != nil {
			if err != io.EOF {
				slog.Error("Mesaj okuma hatası", "error", err, "remoteAddr", remoteAddr)
			}
			if len(accum) > 0 {
				slog.Debug("Tamamlanmamış veri atıldı", "bytes", len(accum), "remoteAddr", remoteAddr)
			}
			return
		}
		if n == 0 {
			continue
		}
		accum = append(accum, chunk[:n]...)

		// One read may complete several frames; drain them all in order.
		for {
			payload, rest, ok := ExtractFrame(accum)
			accum = rest
			if !ok {
				break
			}

			response := s.handler.Process(ctx, payload)

			if _, err := conn.Write(Wrap(response)); err != nil {
				slog.Error("ACK yazma hatası", "error", err, "remoteAddr", remoteAddr)
				return
			}
		}
	}
}

// Addr returns the bound listener address, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
