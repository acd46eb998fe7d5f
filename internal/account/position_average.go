package account

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/enum"
	"main/internal/journal"
)

// avgCore is the net weighted-average reduce/flip algorithm shared by the
// KeepAverage variants. size is signed; a flat position always resets the
// average price to zero.
type avgCore struct {
	size     decimal.Decimal
	avg      decimal.Decimal
	realized decimal.Decimal
}

// apply folds one fill into the position. qty is unsigned; side supplies the
// direction.
func (c *avgCore) apply(side enum.Side, price, qty decimal.Decimal) {
	execQty := qty
	if side == enum.SideSell {
		execQty = qty.Neg()
	}

	switch {
	case round8(c.size.Add(execQty)).IsZero():
		// full close
		c.realized = round8(c.realized.Add(c.avg.Sub(price).Mul(execQty)))
		c.avg = decimal.Zero
		c.size = decimal.Zero

	case c.size.Mul(execQty).Sign() >= 0:
		// same direction, average blends
		c.avg = round8(c.size.Mul(c.avg).Add(execQty.Mul(price)).Div(c.size.Add(execQty)))
		c.size = round8(c.size.Add(execQty))

	case c.size.Abs().GreaterThan(execQty.Abs()):
		// partial close, average unchanged
		c.realized = round8(c.realized.Add(c.avg.Sub(price).Mul(execQty)))
		c.size = round8(c.size.Add(execQty))

	default:
		// close and reverse: realize the whole old exposure at its average,
		// reopen the excess at the fill price
		c.realized = round8(c.realized.Add(price.Sub(c.avg).Mul(c.size)))
		c.avg = price
		c.size = round8(c.size.Add(execQty))
	}
}

// KeepAverage is the net weighted-average variant with P&L settled in whole
// fiat units.
type KeepAverage struct {
	mu         sync.Mutex
	core       avgCore
	commission decimal.Decimal
	refLTP     decimal.Decimal
	file       *journal.File
}

func NewKeepAverage() *KeepAverage {
	return &KeepAverage{file: journal.NewFile()}
}

func (p *KeepAverage) Executed(e Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logs.Infof("EXECUTION: side=%s, price=%s, size=%s, commission=%s", e.Side, e.Price, e.Size, e.Commission)
	p.commission = round8(p.commission.Add(e.Commission))
	if e.Size.IsZero() {
		return nil
	}

	p.core.apply(e.Side, e.Price, e.Size)
	p.file.Append(avgSnapshot{Timestamp: nowStamp(), Size: p.core.size, AveragePrice: p.core.avg})
	return nil
}

func (p *KeepAverage) ReloadPositions(filename string) {
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

	logs.Infof("pos_size = %s / average_price = %s", p.core.size, p.core.avg)
}

func (p *KeepAverage) RestoreProfit(realized, commission decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.core.realized = realized
	p.commission = commission
}

func (p *KeepAverage) Side() enum.Side {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sideOf(p.core.size)
}

func (p *KeepAverage) Size() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.size
}

func (p *KeepAverage) AveragePrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.avg
}

func (p *KeepAverage) Realized() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.realized
}

func (p *KeepAverage) Commission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commission
}

func (p *KeepAverage) AddCommission(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commission = round8(p.commission.Add(d))
}

func (p *KeepAverage) SetRefPrice(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refLTP = d
}

// Unreal is the mark-to-market P&L against the pushed reference price, in
// whole fiat units.
func (p *KeepAverage) Unreal() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unrealLocked()
}

func (p *KeepAverage) unrealLocked() decimal.Decimal {
	if p.refLTP.IsZero() {
		return decimal.Zero
	}
	return p.refLTP.Sub(p.core.avg).Mul(p.core.size).Truncate(0)
}

func (p *KeepAverage) Profit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.realized.Add(p.commission).Add(p.unrealLocked()).Truncate(0)
}

func (p *KeepAverage) FixedProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core.realized.Add(p.commission).Truncate(0)
}

func sideOf(size decimal.Decimal) enum.Side {
	switch round8(size).Sign() {
	case 1:
		return enum.SideBuy
	case -1:
		return enum.SideSell
	default:
		return enum.SideNone
	}
}
