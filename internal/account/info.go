package account

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/journal"
)

// profitSnapshot is the persisted realized-P&L record.
type profitSnapshot struct {
	Timestamp  float64         `json:"timestamp"`
	Realized   decimal.Decimal `json:"realized"`
	Commission decimal.Decimal `json:"commission"`
	Unreal     decimal.Decimal `json:"unreal"`
}

const profitFlushEvery = 10 // seconds

// Info couples the order tracker with one position engine and owns the
// profit journal: a snapshot is appended after every settlement and every
// ten seconds, and the journal is trimmed to the current trading day on warm
// restart.
type Info struct {
	Order    *OrderList
	Position PositionAccount

	mu            sync.Mutex
	file          *journal.File
	ticks         int
	dailyExecSize decimal.Decimal
}

func NewInfo(position PositionAccount) *Info {
	return &Info{
		Order:    NewOrderList(),
		Position: position,
		file:     journal.NewFile(),
	}
}

// Executed forwards a settlement request to the position engine and flushes
// the profit journal.
func (a *Info) Executed(e Execution) error {
	if err := a.Position.Executed(e); err != nil {
		return err
	}
	a.UpdateProfit()
	return nil
}

// UpdateProfit appends one profit snapshot.
func (a *Info) UpdateProfit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.file.Append(profitSnapshot{
		Timestamp:  nowStamp(),
		Realized:   a.Position.Realized(),
		Commission: a.Position.Commission(),
		Unreal:     a.Position.Unreal(),
	})
}

// ReloadProfit restores realized P&L and commission from the journal,
// keeping only records from the current trading day, and rewrites the file
// compacted.
func (a *Info) ReloadProfit(filename string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// a few seconds past midnight so the rollover writer wins the boundary
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 5, 0, time.Local)
	cutoff := float64(dayStart.UnixNano()) / 1e9

	var (
		kept       []any
		realized   = a.Position.Realized()
		commission = a.Position.Commission()
	)
	for _, raw := range a.file.Reload(filename) {
		var snap profitSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			logs.Errorf("profit snapshot decode, err: %+v", err)
			continue
		}
		if snap.Timestamp < cutoff {
			continue
		}
		realized = snap.Realized
		commission = snap.Commission
		kept = append(kept, snap)
	}
	a.Position.RestoreProfit(realized, commission)

	logs.Infof("realized = %s / commission = %s", realized, commission)
	a.file.Renew(kept)
}

// Tick drives the per-second maintenance: tracker histogram shift + GC
// sweep, plus the periodic profit flush.
func (a *Info) Tick(now time.Time) {
	a.Order.Tick(now)

	a.mu.Lock()
	a.ticks++
	flush := a.ticks%profitFlushEvery == 0
	a.mu.Unlock()
	if flush {
		a.UpdateProfit()
	}
}

// DispStats logs the cumulative order statistics, folds the executed volume
// into the daily total, and resets the counters. Called on the hourly report
// and the daily rollover.
func (a *Info) DispStats() {
	counters := a.Order.Counters()

	a.mu.Lock()
	a.dailyExecSize = a.dailyExecSize.Add(counters.Volume)
	daily := a.dailyExecSize
	a.mu.Unlock()

	logs.Info("---------------------Order counts")
	logs.Infof("    ordered        : %d", counters.Ordered)
	logs.Infof("    order filled   : %d", counters.Filled)
	logs.Infof("    partial filled : %d", counters.PartiallyFilled)
	logs.Infof("    order cancelled: %d", counters.Canceled)
	logs.Infof("    executed volume /h  : %s", counters.Volume)
	logs.Infof("    exec volume today   : %s", daily)

	a.Order.ResetCounters()
}

// DailyExecSize returns the volume executed since the last daily rollover.
func (a *Info) DailyExecSize() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dailyExecSize
}

// ResetDaily zeroes the daily volume on the rollover.
func (a *Info) ResetDaily() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dailyExecSize = decimal.Zero
}
