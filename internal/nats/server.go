package nats

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "HL7_TRANSACTIONS"
	SubjectBase   = "hl7.transactions"
	StatsBucket   = "HL7_STATS"
	HistoryBucket = "HL7_HISTORY"
)

// EmbeddedServer runs an in-process NATS server with JetStream file storage
// and hosts the transaction history stream plus the statistics KV bucket.
type EmbeddedServer struct {
	server *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
}

func NewEmbeddedServer(dataDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		JetStream: true,
		StoreDir:  filepath.Join(dataDir, "nats-store"),
		Port:      -1, // internal use only, random port
		HTTPPort:  -1,
	}

	if err := os.MkdirAll(opts.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("store dizini oluşturulamadı: %w", err)
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("NATS sunucu oluşturulamadı: %w", err)
	}

	ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("NATS sunucu başlatılamadı")
	}

	slog.Info("Gömülü NATS sunucu başlatıldı", "clientURL", ns.ClientURL())

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS bağlantısı kurulamadı: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("JetStream başlatılamadı: %w", err)
	}

	es := &EmbeddedServer{
		server: ns,
		nc:     nc,
		js:     js,
	}

	if err := es.createStream(); err != nil {
		es.Shutdown()
		return nil, err
	}
	if err := es.createKVStore(); err != nil {
		es.Shutdown()
		return nil, err
	}

	return es, nil
}

func (es *EmbeddedServer) createStream() error {
	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "İşlenen HL7 transaction geçmişi",
		Subjects:    []string{SubjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		MaxMsgs:     1000000,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
	}

	_, err := es.js.CreateOrUpdateStream(context.Background(), streamConfig)
	if err != nil {
		return fmt.Errorf("transaction stream oluşturulamadı: %w", err)
	}
	slog.Info("HL7_TRANSACTIONS stream oluşturuldu")

	return nil
}

func (es *EmbeddedServer) createKVStore() error {
	ctx := context.Background()

	statsKV, err := es.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      StatsBucket,
		Description: "HL7 transaction istatistikleri",
		History:     10,
		TTL:         0,
		MaxBytes:    1024 * 1024, // 1MB
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("stats KV store oluşturulamadı: %w", err)
	}

	keys := []string{
		"total_transactions", "successful_transactions", "failed_transactions",
		"last_transaction_time",
	}

	for _, key := range keys {
		if _, err := statsKV.Get(ctx, key); err != nil {
			if err.Error() == "nats: key not found" {
				statsKV.Put(ctx, key, []byte("0"))
			}
		}
	}

	slog.Info("HL7_STATS KV store oluşturuldu")

	_, err = es.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      HistoryBucket,
		Description: "Son HL7 transaction geçmişi",
		History:     1,
		TTL:         24 * time.Hour,
		MaxBytes:    500 * 1024 * 1024, // 500MB
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("history KV store oluşturulamadı: %w", err)
	}

	slog.Info("HL7_HISTORY KV store oluşturuldu")
	return nil
}

func (es *EmbeddedServer) JetStream() jetstream.JetStream {
	return es.js
}

func (es *EmbeddedServer) Connection() *nats.Conn {
	return es.nc
}

func (es *EmbeddedServer) Shutdown() {
	if es.nc != nil {
		es.nc.Close()
	}
	if es.server != nil {
		es.server.Shutdown()
		es.server.WaitForShutdown()
	}
	slog.Info("NATS sunucu kapatıldı")
}
