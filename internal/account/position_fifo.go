package account

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/enum"
	"main/internal/journal"
)

// FIFO tracks exposure as a queue of same-direction lots; closing fills
// always consume the oldest lot first. Used by exchanges that settle
// first-in-first-out.
type FIFO struct {
	mu         sync.Mutex
	lots       []lot
	realized   decimal.Decimal
	commission decimal.Decimal
	refLTP     decimal.Decimal
	file       *journal.File
}

func NewFIFO() *FIFO {
	return &FIFO{file: journal.NewFile()}
}

func (p *FIFO) Executed(e Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	orgSide := p.sideLocked()
	remain := e.Size
	p.commission = round8(p.commission.Add(e.Commission))
	dir := decimal.NewFromInt(int64(e.Side.Sign()))

	for remain.Sign() > 0 {
		side := p.sideLocked()
		if side == enum.SideNone || side == e.Side {
			// add to the same direction: merge into the lot sharing the
			// order id, else append a new lot
			if idx := p.lotIndex(e.ID); idx >= 0 {
				l := p.lots[idx]
				l.Price = round8(l.Price.Mul(l.Size).Add(e.Price.Mul(remain)).Div(l.Size.Add(remain)))
				l.Size = round8(l.Size.Add(remain))
				p.lots[idx] = l
				p.appendFile(l)
			} else {
				l := lot{ID: e.ID, Side: e.Side, Price: e.Price, Size: remain}
				p.lots = append(p.lots, l)
				p.appendFile(l)
			}
			remain = decimal.Zero
			continue
		}

		// close from the oldest lot first
		front := p.lots[0]
		p.lots = p.lots[1:]
		if round8(remain.Sub(front.Size)).Sign() >= 0 {
			p.realized = round8(p.realized.Add(front.Price.Sub(e.Price).Mul(front.Size).Mul(dir)))
			remain = round8(remain.Sub(front.Size))
			front.Size = decimal.Zero
			p.appendFile(front)
		} else {
			p.realized = round8(p.realized.Add(front.Price.Sub(e.Price).Mul(remain).Mul(dir)))
			front.Size = round8(front.Size.Sub(remain))
			p.appendFile(front)
			p.lots = append([]lot{front}, p.lots...)
			remain = decimal.Zero
		}
	}

	// a side flip mid-fill leaves closed lots in the log; rewrite for
	// consistency
	if orgSide != p.sideLocked() && len(p.lots) != 0 {
		p.renewLocked()
	}
	return nil
}

func (p *FIFO) lotIndex(id string) int {
	for i, l := range p.lots {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (p *FIFO) appendFile(l lot) {
	p.file.Append(lotSnapshot{Timestamp: nowStamp(), Position: l})
}

func (p *FIFO) renewLocked() {
	records := make([]any, 0, len(p.lots))
	for _, l := range p.lots {
		records = append(records, lotSnapshot{Timestamp: nowStamp(), Position: l})
	}
	p.file.Renew(records)
}

// ReloadPositions replays the lot log latest-wins by order id (a zero size
// removes the lot, preserving first-seen queue order) and rewrites the file
// compacted.
func (p *FIFO) ReloadPositions(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		order []string
		byID  = make(map[string]lot)
	)
	for _, raw := range p.file.Reload(filename) {
		var snap lotSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			logs.Errorf("position snapshot decode, err: %+v", err)
			continue
		}
		l := snap.Position
		if l.Size.IsZero() {
			if _, ok := byID[l.ID]; ok {
				delete(byID, l.ID)
			} else {
				logs.Errorf("lot id %s is not in position list", l.ID)
			}
			continue
		}
		if _, ok := byID[l.ID]; !ok {
			order = append(order, l.ID)
		}
		byID[l.ID] = l
	}

	p.lots = p.lots[:0]
	for _, id := range order {
		if l, ok := byID[id]; ok {
			logs.Infof("%+v", l)
			p.lots = append(p.lots, l)
		}
	}
	p.renewLocked()

	logs.Infof("pos_size = %s / average_price = %s", p.sizeLocked(), p.averageLocked())
}

func (p *FIFO) RestoreProfit(realized, commission decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.realized = realized
	p.commission = commission
}

func (p *FIFO) Side() enum.Side {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sideLocked()
}

func (p *FIFO) sideLocked() enum.Side {
	if len(p.lots) == 0 {
		return enum.SideNone
	}
	return p.lots[len(p.lots)-1].Side
}

// Size is signed: negative for a short queue.
func (p *FIFO) Size() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeLocked()
}

func (p *FIFO) sizeLocked() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.lots {
		total = total.Add(l.Size)
	}
	if p.sideLocked() == enum.SideSell {
		total = total.Neg()
	}
	return round8(total)
}

// AveragePrice is the size-weighted mean over the open lots, rounded to
// whole quote units.
func (p *FIFO) AveragePrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.averageLocked()
}

func (p *FIFO) averageLocked() decimal.Decimal {
	if len(p.lots) == 0 {
		return decimal.Zero
	}
	side := p.sideLocked()
	value := decimal.Zero
	size := decimal.Zero
	for _, l := range p.lots {
		value = value.Add(l.Price.Mul(l.Size))
		size = size.Add(l.Size)
		if l.Side != side {
			logs.Errorf("position list error!!! %s != %s", side, l.Side)
		}
	}
	return value.Div(size).RoundBank(0)
}

// Lots returns a copy of the open lots, oldest first.
func (p *FIFO) Lots() []lot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]lot(nil), p.lots...)
}

func (p *FIFO) Realized() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

func (p *FIFO) Commission() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commission
}

func (p *FIFO) AddCommission(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commission = round8(p.commission.Add(d))
}

func (p *FIFO) SetRefPrice(d decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refLTP = d
}

func (p *FIFO) Unreal() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unrealLocked()
}

func (p *FIFO) unrealLocked() decimal.Decimal {
	if p.refLTP.IsZero() {
		return decimal.Zero
	}
	return p.refLTP.Sub(p.averageLocked()).Mul(p.sizeLocked()).Truncate(0)
}

func (p *FIFO) Profit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized.Add(p.commission).Add(p.unrealLocked()).Truncate(0)
}

func (p *FIFO) FixedProfit() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized.Add(p.commission).Truncate(0)
}
