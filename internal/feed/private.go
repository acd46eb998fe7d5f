package feed

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"main/internal/enum"
	"main/internal/errors"
)

// Private-feed event kinds after exchange normalization.
const (
	EventOrdered   = "ordered"
	EventAccepted  = "accepted"
	EventExecution = "execution"
	EventCancel    = "cancel"
)

// OrderEvent is one normalized private-feed message: an order acknowledgment,
// a fill, or a cancel/expire. Remain is nil when the exchange does not echo
// its remaining size.
type OrderEvent struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	PosID      string           `json:"posid,omitempty"`
	Symbol     string           `json:"symbol"`
	Side       enum.Side        `json:"side"`
	Price      decimal.Decimal  `json:"price"`
	Size       decimal.Decimal  `json:"size"`
	Remain     *decimal.Decimal `json:"remain,omitempty"`
	Commission decimal.Decimal  `json:"commission"`
	Settle     string           `json:"settle,omitempty"`
}

func DecodeOrderEvent(data []byte) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return OrderEvent{}, errors.Wrap(err, "unmarshal order event")
	}
	if ev.Type == "" {
		return OrderEvent{}, errors.New("order event without type")
	}
	return ev, nil
}

// RemainOrUnknown returns the echoed remaining size, or -1 when the exchange
// did not report one.
func (ev OrderEvent) RemainOrUnknown() decimal.Decimal {
	if ev.Remain == nil {
		return decimal.NewFromInt(-1)
	}
	return *ev.Remain
}
