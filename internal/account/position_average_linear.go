package account

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/enum"
	"main/internal/journal"
)

// KeepAverageLinear is the weighted-average variant for linear contracts
// settled through a contract multiplier: sizes are kept internally in
// contracts (underlying quantity times rate) and exposed in underlying
// units; P&L stays in quote currency at 8 decimals.
type KeepAverageLinear struct {
	mu         sync.Mutex
	core       avgCore
	rate       decimal.Decimal
	commission decimal.Decimal
	refLTP     decimal.Decimal
	file       *journal.File
}

func NewKeepAverageLinear(rate decimal.Decimal) *KeepAverageLinear {
	if rate.Sign() <= 0 {
		rate = decimal.New(1, 0)
	}
	return &KeepAverageLinear{rate: rate, file: journal.NewFile()}
}

func (p *KeepAverageLinear) Executed(e Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logs.Infof("EXECUTION: side=%s, price=%s, size=%s, commission=%s", e.Side, e.Price, e.Size, e.Commission)
	p.commission = round8(p.commission.Add(e.Commission))
	if e.Size.IsZero() {
		// commission-only settlement (funding, rebates)
		return nil
	}

	p.core.apply(e.Side, e.Price, e.Size.Mul(p.rate))
	p.file.Append(avgSnapshot{Timestamp: nowStamp(), Size: p.core.size, AveragePrice: p.core.avg})
	return nil
}

func (p *KeepAverageLinear) ReloadPositions(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range p.file.Reload(filename) {
		var snap avgSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			logs.Errorf("position snapshot decode, err: %+v", err)
			continue
		}
		p.core.size = snap.Size
		p.core.avg = snap.AveragePrice
	}
	p.file.Renew([]any{avgSnapshot{Timestamp: nowStamp(), Size: p.core.size, AveragePrice: p.core.avg}})

	logs.Infof("pos_size = %s / average_price = %s", p.core.size.Div(p.rate), p.core.avg)
}

func (p *KeepAverageLinear) RestoreProfit(realized, commission decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.core.realized = realized
	p.commission = commission
}

func (p *KeepAverageLinear) Side() enum.Side {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sideOf(p.core.size)
}

// Size is exposed in underlying units (contracts divided by the rate).
func (p *KeepAverageLinear) Size() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.size.Div(p.rate)
}

func (p *KeepAverageLinear) AveragePrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.avg
}

func (p *KeepAverageLinear) Realized() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.realized
}

func (p *KeepAverageLinear) Commission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commission
}

func (p *KeepAverageLinear) AddCommission(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commission = round8(p.commission.Add(d))
}

func (p *KeepAverageLinear) SetRefPrice(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refLTP = d
}

func (p *KeepAverageLinear) Unreal() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unrealLocked()
}

func (p *KeepAverageLinear) unrealLocked() decimal.Decimal {
	if p.refLTP.IsZero() {
		return decimal.Zero
	}
	return round8(p.refLTP.Sub(p.core.avg).Mul(p.core.size))
}

func (p *KeepAverageLinear) Profit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return round8(p.core.realized.Add(p.commission).Add(p.unrealLocked()))
}

func (p *KeepAverageLinear) FixedProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return round8(p.core.realized.Add(p.commission))
}
