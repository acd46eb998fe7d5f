package account

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/enum"
)

// Settle distinguishes opening from closing fills on gross-accounting
// exchanges. The net variants ignore it.
type Settle string

const (
	SettleOpen  Settle = "OPEN"
	SettleClose Settle = "CLOSE"
)

// Execution is one settlement request from the tracker to a position engine.
// PosID is the exchange position id, only meaningful for gross accounting.
type Execution struct {
	ID         string
	PosID      string
	Side       enum.Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	Commission decimal.Decimal
	Settle     Settle
}

// PositionAccount is the capability surface shared by the four accounting
// variants. One engine instance owns one symbol's position; the variant is
// selected once at connection setup per exchange.
type PositionAccount interface {
	Side() enum.Side
	Size() decimal.Decimal
	AveragePrice() decimal.Decimal
	Realized() decimal.Decimal
	Commission() decimal.Decimal
	AddCommission(decimal.Decimal)
	SetRefPrice(decimal.Decimal)
	Unreal() decimal.Decimal
	Profit() decimal.Decimal
	FixedProfit() decimal.Decimal

	// Executed applies a settlement request.
	Executed(Execution) error

	// ReloadPositions replays the snapshot log latest-wins and rewrites it
	// compacted. Replay is idempotent: every record is a full-state snapshot.
	ReloadPositions(filename string)

	// RestoreProfit re-seeds realized P&L and commission on warm restart.
	RestoreProfit(realized, commission decimal.Decimal)
}

// avgSnapshot is the persisted shape of the weighted-average variants.
type avgSnapshot struct {
	Timestamp    float64         `json:"timestamp"`
	Size         decimal.Decimal `json:"size"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// lotSnapshot is the persisted shape of the FIFO and gross variants.
type lotSnapshot struct {
	Timestamp float64 `json:"timestamp"`
	Position  lot     `json:"position"`
}

// lot is one open exposure record. ID carries the order id for FIFO lots and
// the exchange position id for gross positions (OrderID then holds the
// opening order).
type lot struct {
	ID         string          `json:"id,omitempty"`
	PosID      string          `json:"posid,omitempty"`
	OrderID    string          `json:"orderid,omitempty"`
	Side       enum.Side       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	CloseOrder bool            `json:"closeorder,omitempty"`
}

func nowStamp() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// round8 bounds floating-point drift after every arithmetic step; half-even
// like the upstream settlement engines.
func round8(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(8)
}
