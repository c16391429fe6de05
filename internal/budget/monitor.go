package budget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/digihome/digihome-core/internal/account"
	"github.com/digihome/digihome-core/internal/device"
	"github.com/digihome/digihome-core/internal/notify"
	"github.com/digihome/digihome-core/internal/telemetry"
)

// DefaultWarnRatio is the share of the monthly budget that triggers a warning.
const DefaultWarnRatio = 0.8

// DefaultTariffs are the Rupiah per kWh rates per tariff tier.
var DefaultTariffs = map[string]float64{
	account.TariffTier900:  1352.00,
	account.TariffTier1300: 1444.70,
	account.TariffTier2200: 1444.70,
	account.TariffOther:    1699.53,
}

const (
	warningTitle = "Peringatan Anggaran Listrik"
	warningBody  = "Biaya listrik bulan ini sudah mencapai %.0f%% dari anggaran (Rp %.0f dari Rp %.0f)."
)

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

// AccountStore is the part of account.Repository the monitor needs.
type AccountStore interface {
	Get(ctx context.Context, id string) (*account.Account, error)
	ListUnnotified(ctx context.Context, mark account.BudgetMark) ([]account.Account, error)
	MarkBudgetNotified(ctx context.Context, id string, mark account.BudgetMark) error
}

// DeviceLister lists an account's devices.
type DeviceLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]device.Device, error)
}

// UsageStore reads cumulative energy readings.
type UsageStore interface {
	EnergyBounds(ctx context.Context, deviceID string, from, to time.Time) (telemetry.EnergyBounds, error)
}

// Notifier delivers a notification to an account.
type Notifier interface {
	Notify(ctx context.Context, accountID, title, body string, data map[string]string) error
}

// Config tunes the monitor.
type Config struct {
	// RunAt is the local "HH:MM" of the daily check.
	RunAt     string
	WarnRatio float64
	Tariffs   map[string]float64
	Location  *time.Location
}

// Report is an account's usage so far this month.
type Report struct {
	AccountID string  `json:"accountId"`
	KWh       float64 `json:"kwh"`
	Cost      float64 `json:"cost"`
	Budget    float64 `json:"budget"`
	Notified  bool    `json:"notified"`
}

// Monitor warns accounts whose estimated monthly electricity cost
// reaches the warning share of their budget, at most once per month.
type Monitor struct {
	accounts AccountStore
	devices  DeviceLister
	usage    UsageStore
	notifier Notifier
	cfg      Config
	logger   Logger
	now      func() time.Time
}

// NewMonitor creates a monitor.
func NewMonitor(cfg Config, accounts AccountStore, devices DeviceLister, usage UsageStore, notifier Notifier, logger Logger) *Monitor {
	if cfg.WarnRatio <= 0 {
		cfg.WarnRatio = DefaultWarnRatio
	}
	if len(cfg.Tariffs) == 0 {
		cfg.Tariffs = DefaultTariffs
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RunAt == "" {
		cfg.RunAt = "20:00"
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		accounts: accounts,
		devices:  devices,
		usage:    usage,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Rate returns the price per kWh for tier. Unknown tiers use the
// "other" rate.
func (m *Monitor) Rate(tier string) float64 {
	if r, ok := m.cfg.Tariffs[tier]; ok {
		return r
	}
	if r, ok := m.cfg.Tariffs[account.TariffOther]; ok {
		return r
	}
	return DefaultTariffs[account.TariffOther]
}

// Check evaluates every account not yet warned this month and returns how
// many warnings were sent. A failure for one account is logged and the
// others are still checked.
func (m *Monitor) Check(ctx context.Context, now time.Time) (int, error) {
	mark := account.MarkFor(now.In(m.cfg.Location))

	accounts, err := m.accounts.ListUnnotified(ctx, mark)
	if err != nil {
		return 0, fmt.Errorf("listing accounts: %w", err)
	}

	sent := 0
	for i := range accounts {
		rep, err := m.evaluate(ctx, &accounts[i], now)
		if err != nil {
			m.logger.Error("budget check failed", "account_id", accounts[i].ID, "error", err)
			continue
		}
		if rep.Notified {
			sent++
		}
	}

	m.logger.Info("budget check finished", "accounts", len(accounts), "warnings", sent)
	return sent, nil
}

// CheckAccount evaluates one account. An account already warned this
// month gets its report without a second warning.
func (m *Monitor) CheckAccount(ctx context.Context, accountID string, now time.Time) (Report, error) {
	acct, err := m.accounts.Get(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("loading account: %w", err)
	}
	return m.evaluate(ctx, acct, now)
}

func (m *Monitor) evaluate(ctx context.Context, acct *account.Account, now time.Time) (Report, error) {
	local := now.In(m.cfg.Location)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, m.cfg.Location)
	to := from.AddDate(0, 1, 0)

	kwh, err := m.monthlyKWh(ctx, acct.ID, from, to)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		AccountID: acct.ID,
		KWh:       kwh,
		Cost:      kwh * m.Rate(acct.TariffTier),
		Budget:    acct.MonthlyBudget,
	}

	if acct.MonthlyBudget <= 0 || acct.NotifiedFor(local) {
		return rep, nil
	}
	if rep.Cost < m.cfg.WarnRatio*acct.MonthlyBudget {
		return rep, nil
	}

	percent := math.Floor(rep.Cost / acct.MonthlyBudget * 100)
	body := fmt.Sprintf(warningBody, percent, rep.Cost, acct.MonthlyBudget)
	data := map[string]string{
		"type":   "budget",
		"cost":   strconv.FormatFloat(rep.Cost, 'f', 2, 64),
		"budget": strconv.FormatFloat(acct.MonthlyBudget, 'f', 2, 64),
	}
	err = m.notifier.Notify(ctx, acct.ID, warningTitle, body, data)
	switch {
	case errors.Is(err, notify.ErrNoRecipients):
		// Left unmarked so the warning goes out once a device registers.
		m.logger.Info("budget exceeded but account has no push tokens", "account_id", acct.ID, "cost", rep.Cost)
		return rep, nil
	case err != nil:
		return rep, fmt.Errorf("sending budget warning: %w", err)
	}

	if err := m.accounts.MarkBudgetNotified(ctx, acct.ID, account.MarkFor(local)); err != nil {
		return rep, fmt.Errorf("recording budget warning: %w", err)
	}

	rep.Notified = true
	m.logger.Info("budget warning sent", "account_id", acct.ID, "cost", rep.Cost, "budget", acct.MonthlyBudget)
	return rep, nil
}

func (m *Monitor) monthlyKWh(ctx context.Context, accountID string, from, to time.Time) (float64, error) {
	devices, err := m.devices.ListByOwner(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("listing devices: %w", err)
	}

	var total float64
	for _, d := range devices {
		b, err := m.usage.EnergyBounds(ctx, d.ID, from, to)
		if err != nil {
			return 0, fmt.Errorf("reading usage of %s: %w", d.ID, err)
		}
		total += b.Consumed()
	}
	return total, nil
}

// nextRun returns the first RunAt after now in the monitor's zone.
func (m *Monitor) nextRun(now time.Time) (time.Time, error) {
	at, err := time.Parse("15:04", m.cfg.RunAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing run_at %q: %w", m.cfg.RunAt, err)
	}
	local := now.In(m.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, m.cfg.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Run checks once a day at RunAt until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		now := m.now()
		next, err := m.nextRun(now)
		if err != nil {
			return err
		}
		m.logger.Debug("next budget check scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if _, err := m.Check(ctx, m.now()); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("budget check failed", "error", err)
			}
		}
	}
}
