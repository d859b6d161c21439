package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/minasoft/hl7-gateway/internal/db"
	"github.com/nats-io/nats.go/jetstream"
)

// Recorder publishes one TransactionRecord per processed message to the
// history stream and bumps the statistics counters. Best-effort: every
// failure is logged and swallowed, history is never on the ACK critical path.
type Recorder struct {
	js jetstream.JetStream
}

func NewRecorder(js jetstream.JetStream) *Recorder {
	return &Recorder{js: js}
}

func (r *Recorder) Record(ctx context.Context, rec *db.TransactionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Transaction serialize hatası", "id", rec.ID, "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", SubjectBase, rec.ID)
	if _, err := r.js.Publish(ctx, subject, data); err != nil {
		slog.Error("Transaction publish hatası", "id", rec.ID, "error", err)
		return
	}

	// Recent-history KV feeds the dashboard message listing.
	if historyKV, err := r.js.KeyValue(ctx, HistoryBucket); err == nil {
		if _, err := historyKV.Put(ctx, rec.ID, data); err != nil {
			slog.Error("History KV yazma hatası", "id", rec.ID, "error", err)
		}
	}

	r.bumpStats(ctx, rec)

	slog.Debug("Transaction geçmişe eklendi",
		"id", rec.ID,
		"controlID", rec.MessageControlID,
		"ackCode", rec.AckCode)
}

func (r *Recorder) bumpStats(ctx context.Context, rec *db.TransactionRecord) {
	statsKV, err := r.js.KeyValue(ctx, StatsBucket)
	if err != nil {
		slog.Error("Stats KV erişilemedi", "error", err)
		return
	}

	bump := func(key string) {
		val := 0
		if entry, err := statsKV.Get(ctx, key); err == nil {
			val, _ = strconv.Atoi(string(entry.Value()))
		}
		statsKV.Put(ctx, key, []byte(strconv.Itoa(val+1)))
	}

	bump("total_transactions")
	if rec.AckCode == "AA" {
		bump("successful_transactions")
	} else {
		bump("failed_transactions")
	}
	statsKV.Put(ctx, "last_transaction_time", []byte(time.Now().Format(time.RFC3339)))
}
