package account

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/enum"
	"main/internal/guard"
	"main/internal/journal"
)

// Gross tracks long and short exposure as two independent maps keyed by the
// exchange position id, never netted at the entity level: the exchange allows
// a simultaneous long and short under one account. Closing an id settles
// against that position's own entry price, and realized P&L floors to match
// exchange settlement.
type Gross struct {
	mu         sync.Mutex
	gate       *guard.Counter
	long       map[string]lot
	short      map[string]lot
	realized   decimal.Decimal
	commission decimal.Decimal
	refLTP     decimal.Decimal
	file       *journal.File
}

func NewGross() *Gross {
	return &Gross{
		gate:  guard.NewCounter("gross-position"),
		long:  make(map[string]lot),
		short: make(map[string]lot),
		file:  journal.NewFile(),
	}
}

func (p *Gross) Executed(e Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	orgSide := p.sideLocked()
	p.commission = round8(p.commission.Add(e.Commission))

	if e.Settle == SettleOpen {
		l := lot{PosID: e.PosID, OrderID: e.ID, Side: e.Side, Price: e.Price, Size: e.Size}
		switch e.Side {
		case enum.SideBuy:
			p.long[e.PosID] = l
		case enum.SideSell:
			p.short[e.PosID] = l
		}
		p.appendFile(l)
	} else {
		// a BUY closes a short position, a SELL closes a long one
		switch e.Side {
		case enum.SideBuy:
			p.closeLocked(p.short, e, func(entry, exit decimal.Decimal) decimal.Decimal {
				return entry.Sub(exit)
			})
		case enum.SideSell:
			p.closeLocked(p.long, e, func(entry, exit decimal.Decimal) decimal.Decimal {
				return exit.Sub(entry)
			})
		}
	}

	if orgSide != p.sideLocked() && (len(p.long) != 0 || len(p.short) != 0) {
		p.renewLocked()
	}
	return nil
}

func (p *Gross) closeLocked(positions map[string]lot, e Execution, diff func(entry, exit decimal.Decimal) decimal.Decimal) {
	pos, ok := positions[e.PosID]
	if !ok {
		logs.Errorf("position error!!! [%s/%s] can't find from position list", e.Side, e.PosID)
		return
	}

	size := e.Size
	if pos.Size.LessThan(size) {
		// a close larger than the position should never arrive
		logs.Errorf("position size error!!! [execsize=%s/pos=%+v]", size, pos)
		size = pos.Size
	}

	// settle against this position's own entry price; floored like the
	// exchange does
	p.realized = p.realized.Add(diff(pos.Price, e.Price).Mul(size).Floor())

	if round8(pos.Size.Sub(size)).IsZero() {
		delete(positions, e.PosID)
		pos.Size = decimal.Zero
		p.appendFile(pos)
	} else {
		pos.Size = round8(pos.Size.Sub(size))
		positions[e.PosID] = pos
		p.appendFile(pos)
	}
}

func (p *Gross) appendFile(l lot) {
	p.file.Append(lotSnapshot{Timestamp: nowStamp(), Position: l})
}

func (p *Gross) renewLocked() {
	p.gate.Enter()
	defer p.gate.Leave()

	records := make([]any, 0, len(p.long)+len(p.short))
	for _, l := range p.long {
		logs.Infof("LONG POS: %+v", l)
		records = append(records, lotSnapshot{Timestamp: nowStamp(), Position: l})
	}
	for _, l := range p.short {
		logs.Infof("SHORT POS: %+v", l)
		records = append(records, lotSnapshot{Timestamp: nowStamp(), Position: l})
	}
	p.file.Renew(records)
}

// ReloadPositions replays the position log latest-wins by position id per
// side (a zero size removes the record) and rewrites the file compacted.
// Close-order flags are dropped on a cold load: no closing order survives a
// restart.
func (p *Gross) ReloadPositions(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	firstLoad := p.file.Filename() != filename
	records := p.file.Reload(filename)

	p.gate.Enter()
	p.long = make(map[string]lot)
	p.short = make(map[string]lot)
	for _, raw := range records {
		var snap lotSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			logs.Errorf("position snapshot decode, err: %+v", err)
			continue
		}
		l := snap.Position
		positions := p.short
		if l.Side == enum.SideBuy {
			positions = p.long
		}
		if l.Size.IsZero() {
			if _, ok := positions[l.PosID]; ok {
				delete(positions, l.PosID)
			} else {
				logs.Errorf("position id %s is not in position list", l.PosID)
			}
			continue
		}
		if firstLoad {
			l.CloseOrder = false
		}
		positions[l.PosID] = l
	}
	p.gate.Leave()

	p.renewLocked()
	logs.Infof("pos_size = %s / average_price = %s", p.sizeLocked(), p.averageLocked())
}

func (p *Gross) RestoreProfit(realized, commission decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.realized = realized
	p.commission = commission
}

// IsMyPosition reports whether the exchange position id is tracked on either
// side.
func (p *Gross) IsMyPosition(posid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, long := p.long[posid]
	_, short := p.short[posid]
	return long || short
}

// MarkCloseOrder flags a position as having an outstanding closing order, so
// strategies do not close it twice. Returns false for an unknown id.
func (p *Gross) MarkCloseOrder(posid string, flag bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.long[posid]; ok {
		l.CloseOrder = flag
		p.long[posid] = l
		return true
	}
	if l, ok := p.short[posid]; ok {
		l.CloseOrder = flag
		p.short[posid] = l
		return true
	}
	return false
}

// LongPositions returns a copy of the long side.
func (p *Gross) LongPositions() []lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lot, 0, len(p.long))
	for _, l := range p.long {
		out = append(out, l)
	}
	return out
}

// ShortPositions returns a copy of the short side.
func (p *Gross) ShortPositions() []lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lot, 0, len(p.short))
	for _, l := range p.short {
		out = append(out, l)
	}
	return out
}

func calcAverage(positions map[string]lot) (avg, total decimal.Decimal) {
	if len(positions) == 0 {
		return decimal.Zero, decimal.Zero
	}
	value := decimal.Zero
	size := decimal.Zero
	var side enum.Side
	for _, l := range positions {
		value = value.Add(l.Price.Mul(l.Size))
		size = size.Add(l.Size)
		if side == "" {
			side = l.Side
		} else if side != l.Side {
			logs.Errorf("position list error!!! %s != %s", side, l.Side)
		}
	}
	return value.Div(size).RoundBank(3), size
}

// calcLocked pools both maps into net size, average price, and combined
// offsetting+unrealized profit. Out-of-thread callers wait out any bulk
// rewrite first.
func (p *Gross) calcLocked() (total, average, unreal decimal.Decimal) {
	longAvg, longSize := calcAverage(p.long)
	shortAvg, shortSize := calcAverage(p.short)
	total = round8(longSize.Sub(shortSize))

	posProfit := shortAvg.Sub(longAvg).Mul(decimal.Min(longSize, shortSize))
	switch total.Sign() {
	case 0:
		average = decimal.Zero
	case 1:
		average = longAvg
	default:
		average = shortAvg
	}

	markToMarket := decimal.Zero
	if !p.refLTP.IsZero() {
		markToMarket = p.refLTP.Sub(average).Mul(total).Floor()
	}
	return total, average, posProfit.Add(markToMarket)
}

func (p *Gross) sideLocked() enum.Side {
	total, _, _ := p.calcLocked()
	return sideOf(total)
}

func (p *Gross) averageLocked() decimal.Decimal {
	_, average, _ := p.calcLocked()
	return average
}

func (p *Gross) sizeLocked() decimal.Decimal {
	total, _, _ := p.calcLocked()
	return total
}

func (p *Gross) Side() enum.Side {
	p.gate.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sideLocked()
}

func (p *Gross) Size() decimal.Decimal {
	p.gate.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeLocked()
}

func (p *Gross) AveragePrice() decimal.Decimal {
	p.gate.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.averageLocked()
}

func (p *Gross) Realized() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

func (p *Gross) Commission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commission
}

func (p *Gross) AddCommission(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commission = round8(p.commission.Add(d))
}

func (p *Gross) SetRefPrice(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refLTP = d
}

func (p *Gross) Unreal() decimal.Decimal {
	p.gate.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unrealLocked()
}

func (p *Gross) unrealLocked() decimal.Decimal {
	_, _, unreal := p.calcLocked()
	return unreal.Truncate(0)
}

func (p *Gross) Profit() decimal.Decimal {
	p.gate.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized.Add(p.commission).Add(p.unrealLocked()).Truncate(0)
}

func (p *Gross) FixedProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized.Add(p.commission).Truncate(0)
}
