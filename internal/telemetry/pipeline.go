package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/digihome/digihome-core/internal/device"
)

// DefaultFlushInterval is how often buffered samples are summarised.
const DefaultFlushInterval = 5 * time.Minute

// Logger is the logging surface of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStore is the part of device.Repository the pipeline needs.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
	RecordTelemetry(ctx context.Context, id, wifiSSID string, wifiRSSI int) error
}

// Forwarder delivers a payload to an account's live session.
type Forwarder interface {
	Forward(accountID string, payload []byte) bool
}

// SummarySink receives every flushed summary. It must not block.
type SummarySink interface {
	WritePowerSummary(deviceID string, voltage, current, power, powerFactor, energyKWh float64, at time.Time)
}

// Config tunes the pipeline.
type Config struct {
	FlushInterval time.Duration

	// IngestRate bounds device record updates per device per second.
	// Zero means unlimited.
	IngestRate  float64
	IngestBurst int
}

// Deps holds the pipeline's collaborators. Sink and Logger are optional.
type Deps struct {
	Devices DeviceStore
	Router  Forwarder
	Repo    Repository
	Sink    SummarySink
	Logger  Logger
}

// Pipeline forwards telemetry to live sessions immediately and writes a
// per-device summary to the store once per flush interval.
//
// Thread Safety:
//   - Ingest is safe for concurrent use.
//   - Flush is single-flight; an overlapping call returns ErrFlushInProgress.
type Pipeline struct {
	devices DeviceStore
	router  Forwarder
	repo    Repository
	sink    SummarySink
	logger  Logger
	cfg     Config

	mu     sync.Mutex
	buffer map[string][]Sample

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	flushing atomic.Bool
	now      func() time.Time
}

// New creates a pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.IngestBurst < 1 {
		cfg.IngestBurst = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pipeline{
		devices:  deps.Devices,
		router:   deps.Router,
		repo:     deps.Repo,
		sink:     deps.Sink,
		logger:   logger,
		cfg:      cfg,
		buffer:   make(map[string][]Sample),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Ingest handles one sample. raw is the payload as received and is what
// the owner's live session gets. Unknown devices are still buffered so
// their readings are not lost if the device is claimed later.
func (p *Pipeline) Ingest(ctx context.Context, s Sample, raw []byte) error {
	if s.DeviceID == "" {
		return ErrMissingDeviceID
	}
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = p.now()
	}

	d, err := p.devices.GetByID(ctx, s.DeviceID)
	switch {
	case err == nil:
		p.router.Forward(d.OwnerID, raw)
		if p.allow(s.DeviceID) {
			if err := p.devices.RecordTelemetry(ctx, s.DeviceID, s.WifiSSID, s.WifiRSSI); err != nil {
				p.logger.Warn("recording device telemetry failed", "device_id", s.DeviceID, "error", err)
			}
		}
	case errors.Is(err, device.ErrDeviceNotFound):
		p.logger.Debug("telemetry from unregistered device", "device_id", s.DeviceID)
	default:
		p.logger.Warn("device lookup failed", "device_id", s.DeviceID, "error", err)
	}

	p.mu.Lock()
	p.buffer[s.DeviceID] = append(p.buffer[s.DeviceID], s)
	p.mu.Unlock()
	return nil
}

// Buffered returns the number of samples waiting for the next flush.
func (p *Pipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, samples := range p.buffer {
		n += len(samples)
	}
	return n
}

// Flush summarises and persists everything buffered since the last flush.
// It returns the number of summaries written. If the store write fails
// the interval's samples are dropped.
func (p *Pipeline) Flush(ctx context.Context) (int, error) {
	if !p.flushing.CompareAndSwap(false, true) {
		p.logger.Warn("flush skipped, previous flush still running")
		return 0, ErrFlushInProgress
	}
	defer p.flushing.Store(false)

	p.mu.Lock()
	pending := p.buffer
	p.buffer = make(map[string][]Sample)
	p.mu.Unlock()
	p.pruneLimiters(pending)

	at := p.now()
	logs := make([]PowerLog, 0, len(pending))
	for id, samples := range pending {
		if len(samples) == 0 {
			continue
		}
		logs = append(logs, Aggregate(id, samples, at))
	}
	if len(logs) == 0 {
		return 0, nil
	}

	if err := p.repo.InsertMany(ctx, logs); err != nil {
		p.logger.Error("power log flush failed, interval dropped", "devices", len(logs), "error", err)
		return 0, fmt.Errorf("writing power logs: %w", err)
	}

	if p.sink != nil {
		for _, l := range logs {
			p.sink.WritePowerSummary(l.DeviceID, l.Voltage, l.Current, l.Power, l.PowerFactor, l.EnergyKWh, l.Timestamp)
		}
	}

	p.logger.Info("power logs flushed", "devices", len(logs))
	return len(logs), nil
}

// Run flushes on every interval until ctx is cancelled, then flushes
// once more with a fresh context so the last interval is kept.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if _, err := p.Flush(finalCtx); err != nil && !errors.Is(err, ErrFlushInProgress) {
				p.logger.Error("final flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			p.Flush(ctx) //nolint:errcheck // logged inside Flush
		}
	}
}

// pruneLimiters forgets the limiter of every device that sent nothing
// during the interval just swapped out.
func (p *Pipeline) pruneLimiters(active map[string][]Sample) {
	p.limMu.Lock()
	defer p.limMu.Unlock()
	for id := range p.limiters {
		if len(active[id]) == 0 {
			delete(p.limiters, id)
		}
	}
}

func (p *Pipeline) allow(deviceID string) bool {
	if p.cfg.IngestRate <= 0 {
		return true
	}
	p.limMu.Lock()
	lim, ok := p.limiters[deviceID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.cfg.IngestRate), p.cfg.IngestBurst)
		p.limiters[deviceID] = lim
	}
	p.limMu.Unlock()
	return lim.Allow()
}
