package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/minasoft/hl7-gateway/internal/audit"
	"github.com/minasoft/hl7-gateway/internal/clients"
	"github.com/minasoft/hl7-gateway/internal/config"
	"github.com/minasoft/hl7-gateway/internal/mllp"
	"github.com/minasoft/hl7-gateway/internal/nats"
	"github.com/minasoft/hl7-gateway/internal/pipeline"
	"github.com/minasoft/hl7-gateway/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Yapılandırma yüklenemedi", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Embedded NATS server for the transaction history and statistics
	natsServer, err := nats.NewEmbeddedServer(cfg.DataPath)
	if err != nil {
		slog.Error("NATS sunucu başlatılamadı", "error", err)
		os.Exit(1)
	}
	defer natsServer.Shutdown()

	js := natsServer.JetStream()

	auditLogger, err := audit.NewLogger(cfg.AuditDir)
	if err != nil {
		slog.Error("Audit logger başlatılamadı", "error", err)
		os.Exit(1)
	}

	directory := clients.NewDirectory(cfg.DirectoryBaseURL, cfg.HTTPTimeout)
	scheduling := clients.NewScheduling(cfg.SchedulingBaseURL, cfg.HTTPTimeout)
	recorder := nats.NewRecorder(js)

	processor := pipeline.NewProcessor(directory, scheduling, auditLogger, recorder, cfg.FallbackDoctorID)

	// MLLP listener
	mllpServer := mllp.NewServer(cfg.MLLPPort, processor)
	if err := mllpServer.Start(ctx); err != nil {
		slog.Error("MLLP sunucu başlatılamadı", "error", err)
		os.Exit(1)
	}
	defer mllpServer.Stop()

	// Summary API + dashboard
	var wg sync.WaitGroup
	webServer := web.NewServer(audit.NewStore(cfg.AuditDir), auditLogger, js, cfg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			slog.Error("Web sunucu hatası", "error", err)
		}
	}()

	slog.Info("HL7 Gateway başlatıldı",
		"mllpPort", cfg.MLLPPort,
		"webPort", cfg.WebPort,
		"directoryEndpoint", cfg.DirectoryBaseURL,
		"schedulingEndpoint", cfg.SchedulingBaseURL,
	)

	printStartupInfo(cfg)

	<-sigChan
	slog.Info("Kapatma sinyali alındı, sunucu kapatılıyor...")

	cancel()
	mllpServer.Stop()

	wg.Wait()

	slog.Info("HL7 Gateway kapatıldı")
}

func printStartupInfo(cfg *config.Config) {
	info := `
╔═══════════════════════════════════════════════════════════════╗
║                     HL7 Gateway Başlatıldı                    ║
╠═══════════════════════════════════════════════════════════════╣
║ MLLP Listener Port   : %-39d ║
║ Summary API          : http://localhost:%-22d ║
║                                                               ║
║ Directory Endpoint   : %-39s ║
║ Scheduling Endpoint  : %-39s ║
╚═══════════════════════════════════════════════════════════════╝
`
	fmt.Printf(info,
		cfg.MLLPPort,
		cfg.WebPort,
		cfg.DirectoryBaseURL,
		cfg.SchedulingBaseURL,
	)
}
