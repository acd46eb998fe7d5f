package account

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/enum"
	"main/internal/errors"
	"main/internal/guard"
)

var (
	ErrForeignOrder  = errors.New("order was not placed by this process")
	ErrUnknownOrder  = errors.New("order not found")
	ErrSideMismatch  = errors.New("fill side does not match order")
	ErrOversizedFill = errors.New("fill size exceeds remaining size")
)

const (
	myIDHistory     = 5000
	resolvedHistory = 1000
	rollingSeconds  = 86400
)

// OrderList is the single source of truth for outstanding orders. The feed
// context is the only writer; foreground readers racing it bracket their
// reads with the drain gate, which every mutation waits on first.
//
// Cancel and expire acknowledgments are not always delivered, so every order
// carries an invalidate horizon: the per-second Tick sweeps anything past it
// out of the open set regardless of terminal-event delivery.
type OrderList struct {
	mu            sync.Mutex
	gate          *guard.Counter
	orders        map[string]*Order
	myID          *idRing
	executions    *orderRing
	cancellations *orderRing
	counter       CounterSnapshot
	hist          *histogram
	execHandlers  []func(Order)
}

func NewOrderList() *OrderList {
	return &OrderList{
		gate:          guard.NewCounter("orderlist"),
		orders:        make(map[string]*Order),
		myID:          newIDRing(myIDHistory),
		executions:    newOrderRing(resolvedHistory),
		cancellations: newOrderRing(resolvedHistory),
		hist:          newHistogram(rollingSeconds),
	}
}

// Gate exposes the drain gate for foreground readers.
func (l *OrderList) Gate() *guard.Counter {
	return l.gate
}

// OnExecution registers a handler invoked after every applied fill, on the
// caller's goroutine. Registration is not safe once events are flowing.
func (l *OrderList) OnExecution(handler func(Order)) {
	l.execHandlers = append(l.execHandlers, handler)
}

// NewOrder registers an order at submit time. A duplicate id is reported but
// the order is overwritten: the exchange acknowledged it, so it is live.
func (l *OrderList) NewOrder(o Order) {
	l.gate.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.orders[o.ID]; ok {
		logs.Errorf("order id %s is already in list", o.ID)
	}

	o.OrderedAt = time.Now()
	o.Remain = o.Size
	l.orders[o.ID] = &o
	l.myID.add(o.ID)

	l.counter.Ordered++
	l.hist.ordered[l.hist.pos]++
	logs.Infof("ORDERED [%s] %s %s price(%s) size(%s)", o.ID, o.Symbol, o.Side, o.Price, o.Size)
}

// UpdateOrder applies an accept acknowledgment. Foreign, unknown, and already
// resolved ids are ignored. A side or size disagreeing with the request is
// reported, but the acknowledged price wins.
func (l *OrderList) UpdateOrder(id string, side enum.Side, price, size decimal.Decimal) bool {
	l.gate.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.myID.contains(id) {
		logs.Debugf("order id %s is not my order", id)
		return false
	}

	o, ok := l.orders[id]
	if !ok {
		logs.Errorf("order id %s is not in order list (update)", id)
		l.logResolved(id)
		return false
	}

	if o.Side != side || !o.Size.Equal(size) {
		logs.Errorf("order id %s accept mismatch: side %s/%s size %s/%s", id, o.Side, side, o.Size, size)
	}
	o.Price = price
	o.AcceptedAt = time.Now()
	logs.Debugf("ACCEPTED [%s] %+v", id, *o)
	return true
}

// MarkAsInvalidate arms the GC horizon on a cancel request, so the order is
// swept even when the cancel acknowledgment is dropped. The horizon only ever
// moves earlier; the expire deadline moves later to cover the window.
func (l *OrderList) MarkAsInvalidate(id string, timeout time.Duration) *Order {
	l.gate.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.myID.contains(id) {
		logs.Debugf("order id %s is not my order", id)
		return nil
	}

	o, ok := l.orders[id]
	if !ok {
		logs.Debugf("order id %s is not in order list (invalidate)", id)
		l.logResolved(id)
		return nil
	}

	deadline := time.Now().Add(timeout)
	if o.Invalidate.IsZero() || deadline.Before(o.Invalidate) {
		o.Invalidate = deadline
	}
	if deadline.After(o.Expire) {
		o.Expire = deadline
	}

	cp := *o
	return &cp
}

// Executed applies a fill. Unknown and foreign ids are not applied. When the
// exchange echoes its own remaining size (remain >= 0) it is cross-checked to
// 8 decimals; a mismatch is reported but the fill is still applied with the
// locally computed remainder, which stays authoritative. Returns the resolved
// order copy when applied.
func (l *OrderList) Executed(id string, side enum.Side, price, size, remain decimal.Decimal) (*Order, error) {
	l.gate.Wait()
	l.mu.Lock()

	if !l.myID.contains(id) {
		l.mu.Unlock()
		logs.Debugf("order id %s is not my order", id)
		return nil, ErrForeignOrder
	}

	o, ok := l.orders[id]
	if !ok {
		logs.Errorf("order id %s is not in order list (execution)", id)
		l.logResolved(id)
		l.mu.Unlock()
		return nil, ErrUnknownOrder
	}

	if o.Side != side {
		logs.Errorf("fill side %s is not correct: %+v", side, *o)
		l.mu.Unlock()
		return nil, ErrSideMismatch
	}
	if o.Remain.LessThan(size) {
		logs.Errorf("fill size %s is too much: %+v", size, *o)
		l.mu.Unlock()
		return nil, ErrOversizedFill
	}
	if remain.Sign() >= 0 && !o.Remain.Sub(size).Sub(remain).RoundBank(8).IsZero() {
		logs.Errorf("reported remain %s - fill %s does not match local state: %+v", remain, size, *o)
	}

	o.Remain = o.Remain.Sub(size).RoundBank(8)

	record := *o
	record.ExecutedAt = time.Now()
	record.Price = price
	record.Size = size

	if o.Remain.IsZero() {
		delete(l.orders, id)
		l.counter.Filled++
		l.hist.filled[l.hist.pos]++
		logs.Infof("EXECUTE ALL [%s] %s %s price(%s) size(%s)", id, record.Symbol, side, price, size)
	} else {
		logs.Infof("EXECUTE [%s] %s %s price(%s) size(%s/%s)", id, record.Symbol, side, price, size, o.Size)
	}
	l.executions.add(record)

	l.counter.Volume = l.counter.Volume.Add(size)
	l.hist.volume[l.hist.pos] += size.InexactFloat64()
	l.mu.Unlock()

	for _, handler := range l.execHandlers {
		handler(record)
	}
	return &record, nil
}

// RemoveOrder applies a cancel or expire acknowledgment. A clean cancel and a
// partial-then-cancel are counted separately for statistics.
func (l *OrderList) RemoveOrder(id string) *Order {
	l.gate.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.myID.contains(id) {
		return nil
	}

	o, ok := l.orders[id]
	if !ok {
		logs.Debugf("order id %s is not in order list (remove)", id)
		l.logResolved(id)
		return nil
	}

	delete(l.orders, id)
	l.cancellations.add(*o)

	if !o.Size.Equal(o.Remain) {
		l.counter.PartiallyFilled++
		l.hist.partial[l.hist.pos]++
	} else {
		l.counter.Canceled++
		l.hist.canceled[l.hist.pos]++
	}
	logs.Infof("CANCELED [%s] (canceled or expired)", id)

	cp := *o
	return &cp
}

// Tick runs the per-second maintenance: shift the rolling histogram and sweep
// orders past their invalidate horizon. A sweep firing means the exchange
// dropped a terminal acknowledgment, not that anything is wrong here.
func (l *OrderList) Tick(now time.Time) {
	l.gate.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hist.shift()

	for id, o := range l.orders {
		if !o.Invalidate.IsZero() && o.Invalidate.Before(now) {
			delete(l.orders, id)
			l.cancellations.add(*o)
			logs.Infof("INVALIDATE : %+v", *o)
		}
	}
}

// HistoricalCounter sums activity over the last sec seconds.
func (l *OrderList) HistoricalCounter(sec int) CounterSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hist.sum(sec)
}

// Counters returns the cumulative counters since the last reset.
func (l *OrderList) Counters() CounterSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

// ResetCounters zeroes the cumulative counters. Called on the daily rollover,
// independent of the rolling histogram.
func (l *OrderList) ResetCounters() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counter = CounterSnapshot{}
}

// Len returns the number of open orders.
func (l *OrderList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// IsMine reports whether this process placed the order id recently.
func (l *OrderList) IsMine(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.myID.contains(id)
}

// Open returns a copy of the open orders.
func (l *OrderList) Open() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, *o)
	}
	return out
}

// Get returns a copy of one open order.
func (l *OrderList) Get(id string) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.orders[id]; ok {
		return *o, true
	}
	return Order{}, false
}

// Executions returns the bounded recent fill history, oldest first.
func (l *OrderList) Executions() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.executions.list()
}

// Cancellations returns the bounded recent cancel history, oldest first.
func (l *OrderList) Cancellations() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancellations.list()
}

func (l *OrderList) logResolved(id string) {
	if l.executions.contains(id) {
		logs.Debugf("order id %s already in executions", id)
	}
	if l.cancellations.contains(id) {
		logs.Debugf("order id %s already in cancellations", id)
	}
}
