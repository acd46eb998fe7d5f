package enum

// Side is the normalized order/position direction.
type Side string

const (
	SideNone Side = "NONE"
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY, -1 for SELL, 0 otherwise.
func (s Side) Sign() int {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Opposite flips BUY and SELL.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}
