package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for analytics services
type Config struct {
	AggregationInterval time.Duration    `json:"aggregation_interval" yaml:"aggregation_interval" env:"ECOREWARDS_ANALYTICS_AGGREGATION_INTERVAL"`
	ExportInterval      time.Duration    `json:"export_interval" yaml:"export_interval" env:"ECOREWARDS_ANALYTICS_EXPORT_INTERVAL"`
	Exporters           []ExporterConfig `json:"exporters,omitempty" yaml:"exporters,omitempty"`
}

// ExporterConfig holds configuration for individual exporters
type ExporterConfig struct {
	Type      string `json:"type" yaml:"type"` // "http", "log", "file"
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BatchSize int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
}

func DefaultConfig() Config {
	return Config{AggregationInterval: time.Hour, ExportInterval: 6 * time.Hour}
}

// Service bundles metrics, aggregation, export and the Prometheus mirror behind one hook.
type Service struct {
	metrics    *Metrics
	aggregator *AggregationEngine
	exporter   *ExportManager
	prom       *PromCollector
	hook       Hook
	cfg        Config
	log        *slog.Logger
}

// NewService builds the analytics pipeline. reg may be nil to skip Prometheus.
func NewService(cfg Config, reg prometheus.Registerer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.AggregationInterval <= 0 {
		cfg.AggregationInterval = def.AggregationInterval
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = def.ExportInterval
	}
	log = log.With("component", "analytics")

	metrics := NewMetrics()
	exporters := []Exporter{NewLogExporter(log)}
	for _, ec := range cfg.Exporters {
		switch ec.Type {
		case "http":
			exporters = append(exporters, NewHTTPExporter(ec.Endpoint, ec.APIKey, ec.BatchSize))
		case "file":
			exporters = append(exporters, NewFileExporter(ec.Path))
		case "log", "":
		default:
			log.Warn("unknown analytics exporter ignored", "type", ec.Type)
		}
	}

	s := &Service{
		metrics:    metrics,
		aggregator: NewAggregationEngine(metrics, cfg.AggregationInterval, log),
		exporter:   NewExportManager(exporters...),
		cfg:        cfg,
		log:        log,
	}
	hooks := []Hook{metrics}
	if reg != nil {
		s.prom = NewPromCollector(reg)
		hooks = append(hooks, s.prom)
	}
	s.hook = NewBridge(hooks...)
	return s
}

// Hook returns the hook to subscribe to the engine's event bus.
func (s *Service) Hook() Hook { return s.hook }

func (s *Service) Metrics() *Metrics { return s.metrics }

func (s *Service) Aggregator() *AggregationEngine { return s.aggregator }

// Start runs aggregation and periodic export until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.aggregator.Start(ctx)
	go s.startPeriodicExport(ctx)
}

func (s *Service) startPeriodicExport(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ExportNow(ctx); err != nil {
				s.log.Warn("analytics export failed", "error", err)
			}
		}
	}
}

// ExportNow aggregates and sends the daily summaries to every exporter.
func (s *Service) ExportNow(ctx context.Context) error {
	s.aggregator.AggregateNow()
	return s.exporter.ExportData(ctx, s.aggregator.GetAllAggregatedData(PeriodDaily))
}

func (s *Service) Close() error { return s.exporter.Close() }
