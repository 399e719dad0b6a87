package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/config"
	"github.com/dokzlo13/irlightd/internal/ledger"
)

// HealthService provides HTTP health check and introspection endpoints.
type HealthService struct {
	cfg    *config.Config
	bridge *BridgeService
	ledger *ledger.Ledger
	server *http.Server
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, bridge *BridgeService, l *ledger.Ledger) *HealthService {
	return &HealthService{
		cfg:    cfg,
		bridge: bridge,
		ledger: l,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

// lightStatus is the wire form of one light's believed state.
type lightStatus struct {
	Device   string `json:"device"`
	Resolved bool   `json:"resolved"`
	On       bool   `json:"on"`
	Step     int    `json:"step"`
}

// ledgerEntry is the wire form of one recorded transition.
type ledgerEntry struct {
	Origin       string    `json:"origin"`
	FromResolved bool      `json:"from_resolved"`
	FromOn       bool      `json:"from_on"`
	FromStep     int       `json:"from_step"`
	ToOn         bool      `json:"to_on"`
	ToStep       int       `json:"to_step"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready means the broker connection is up
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !s.bridge.Client.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not_ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	mux.HandleFunc("/lights", s.handleLights)
	if s.ledger != nil {
		mux.HandleFunc("/lights/{device}/ledger", s.handleLedger)
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}

// handleLights reports the believed state of every configured light.
func (s *HealthService) handleLights(w http.ResponseWriter, r *http.Request) {
	engines := s.bridge.Router.Engines()
	statuses := make([]lightStatus, 0, len(engines))
	for _, engine := range engines {
		state := engine.State()
		statuses = append(statuses, lightStatus{
			Device:   engine.Device(),
			Resolved: state.Resolved,
			On:       state.On,
			Step:     state.Step,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		log.Error().Err(err).Msg("Failed to encode light statuses")
	}
}

// handleLedger reports recent transitions for one light.
func (s *HealthService) handleLedger(w http.ResponseWriter, r *http.Request) {
	device := r.PathValue("device")
	if !s.knownDevice(device) {
		http.Error(w, "unknown light", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(parsed, 500)
	}

	entries, err := s.ledger.Recent(device, limit)
	if err != nil {
		log.Error().Err(err).Str("light", device).Msg("Failed to read ledger")
		http.Error(w, "ledger read failed", http.StatusInternalServerError)
		return
	}

	out := make([]ledgerEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntry{
			Origin:       e.Origin,
			FromResolved: e.FromResolved,
			FromOn:       e.FromOn,
			FromStep:     e.FromStep,
			ToOn:         e.ToOn,
			ToStep:       e.ToStep,
			Timestamp:    e.Timestamp,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("Failed to encode ledger entries")
	}
}

func (s *HealthService) knownDevice(device string) bool {
	for _, engine := range s.bridge.Router.Engines() {
		if engine.Device() == device {
			return true
		}
	}
	return false
}
