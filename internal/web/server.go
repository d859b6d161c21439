package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/minasoft/hl7-gateway/internal/audit"
	"github.com/minasoft/hl7-gateway/internal/config"
	"github.com/minasoft/hl7-gateway/internal/db"
	gwnats "github.com/minasoft/hl7-gateway/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
)

// Server exposes the summary retrieval/generation API and the operational
// dashboard endpoints.
type Server struct {
	echo   *echo.Echo
	store  *audit.Store
	logger *audit.Logger
	js     jetstream.JetStream
	config *config.Config
}

type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(store *audit.Store, logger *audit.Logger, js jetstream.JetStream, cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = &requestValidator{validate: validator.New()}

	return &Server{
		echo:   e,
		store:  store,
		logger: logger,
		js:     js,
		config: cfg,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.WebPort)
	slog.Info("Web sunucu başlatılıyor", "port", s.config.WebPort)

	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Web sunucu hatası", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/messages", s.handleGetMessages)

	v1 := api.Group("/v1/summaries")
	v1.GET("", s.handleListSummaries)
	v1.GET("/by-appointment/:id", s.handleSummaryByAppointment)
	v1.GET("/by-patient/:id", s.handleSummaryByPatient)
	v1.POST("/generate", s.handleGenerateSummary)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	components := make(map[string]string)
	overallStatus := "healthy"

	if s.js != nil {
		if _, err := s.js.AccountInfo(ctx); err != nil {
			components["nats"] = "unhealthy: " + err.Error()
			overallStatus = "degraded"
		} else {
			components["nats"] = "healthy"
		}

		stream, err := s.js.Stream(ctx, gwnats.StreamName)
		if err != nil {
			components["history_stream"] = "unhealthy: stream not found"
			overallStatus = "degraded"
		} else {
			info, _ := stream.Info(ctx)
			if info != nil {
				components["history_stream"] = fmt.Sprintf("healthy (messages: %d)", info.State.Msgs)
			} else {
				components["history_stream"] = "healthy"
			}
		}

		statsKV, err := s.js.KeyValue(ctx, gwnats.StatsBucket)
		if err != nil {
			components["stats_store"] = "unhealthy"
			overallStatus = "degraded"
		} else {
			status, _ := statsKV.Status(ctx)
			if status != nil {
				components["stats_store"] = fmt.Sprintf("healthy (values: %d)", status.Values())
			} else {
				components["stats_store"] = "healthy"
			}
		}
	} else {
		components["nats"] = "unhealthy: not initialized"
		overallStatus = "unhealthy"
	}

	if _, err := os.Stat(s.config.AuditDir); err != nil {
		components["audit_dir"] = "unhealthy: " + err.Error()
		overallStatus = "degraded"
	} else {
		components["audit_dir"] = "healthy"
	}

	health := map[string]interface{}{
		"status":     overallStatus,
		"timestamp":  time.Now(),
		"components": components,
		"version":    "1.0.0",
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, health)
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	statsKV, err := s.js.KeyValue(ctx, gwnats.StatsBucket)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Stats KV erişilemedi")
	}

	getKVInt := func(key string) int {
		entry, err := statsKV.Get(ctx, key)
		if err != nil {
			return 0
		}
		var val int
		fmt.Sscanf(string(entry.Value()), "%d", &val)
		return val
	}

	stats := map[string]interface{}{
		"total":      getKVInt("total_transactions"),
		"successful": getKVInt("successful_transactions"),
		"failed":     getKVInt("failed_transactions"),
	}

	if lastTime, err := statsKV.Get(ctx, "last_transaction_time"); err == nil {
		stats["last_transaction_time"] = string(lastTime.Value())
	}

	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetMessages(c echo.Context) error {
	ctx := c.Request().Context()

	ackCode := c.QueryParam("ackCode")
	patientDNI := c.QueryParam("patientDni")
	messageType := c.QueryParam("messageType")
	limit := 100

	records := []db.TransactionRecord{}

	historyKV, err := s.js.KeyValue(ctx, gwnats.HistoryBucket)
	if err == nil {
		keys, err := historyKV.Keys(ctx)
		if err == nil {
			for _, key := range keys {
				entry, err := historyKV.Get(ctx, key)
				if err != nil {
					continue
				}

				var rec db.TransactionRecord
				if err := json.Unmarshal(entry.Value(), &rec); err != nil {
					continue
				}

				if ackCode != "" && rec.AckCode != ackCode {
					continue
				}
				if patientDNI != "" && !contains(rec.PatientDNI, patientDNI) {
					continue
				}
				if messageType != "" && !contains(rec.MessageType, messageType) {
					continue
				}

				records = append(records, rec)
			}
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) > limit {
		records = records[:limit]
	}

	return c.JSON(http.StatusOK, records)
}

func contains(s, substr string) bool {
	return s != "" && substr != "" &&
		strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
