package account

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/enum"
)

// Order is the tracker's view of one outstanding order. IDs are
// exchange-assigned opaque strings. CloseID links a closing order to the
// position it settles on gross-accounting exchanges.
type Order struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       enum.Side       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Remain     decimal.Decimal `json:"remain"`
	CloseID    string          `json:"closeid,omitempty"`
	OrderedAt  time.Time       `json:"ordered_time"`
	AcceptedAt time.Time       `json:"accepted_time,omitzero"`
	ExecutedAt time.Time       `json:"exec_time,omitzero"`
	Expire     time.Time       `json:"expire,omitzero"`
	Invalidate time.Time       `json:"invalidate,omitzero"`
}

// idRing remembers the last n order ids this process placed, so foreign
// events on a shared account can be told apart from our own.
type idRing struct {
	ids  []string
	set  map[string]int
	next int
}

func newIDRing(n int) *idRing {
	return &idRing{
		ids: make([]string, n),
		set: make(map[string]int, n),
	}
}

func (r *idRing) add(id string) {
	if old := r.ids[r.next]; old != "" {
		if cnt := r.set[old] - 1; cnt <= 0 {
			delete(r.set, old)
		} else {
			r.set[old] = cnt
		}
	}
	r.ids[r.next] = id
	r.set[id]++
	r.next = (r.next + 1) % len(r.ids)
}

func (r *idRing) contains(id string) bool {
	return r.set[id] > 0
}

// orderRing keeps the last n resolved orders (fills or cancels).
type orderRing struct {
	orders []Order
	next   int
	filled bool
}

func newOrderRing(n int) *orderRing {
	return &orderRing{orders: make([]Order, n)}
}

func (r *orderRing) add(o Order) {
	r.orders[r.next] = o
	r.next++
	if r.next == len(r.orders) {
		r.next = 0
		r.filled = true
	}
}

func (r *orderRing) contains(id string) bool {
	for _, o := range r.list() {
		if o.ID == id {
			return true
		}
	}
	return false
}

// list returns the entries oldest first.
func (r *orderRing) list() []Order {
	if !r.filled {
		return append([]Order(nil), r.orders[:r.next]...)
	}
	out := make([]Order, 0, len(r.orders))
	out = append(out, r.orders[r.next:]...)
	out = append(out, r.orders[:r.next]...)
	return out
}
