package feed

import (
	"encoding/json"
	"strconv"

	"github.com/yanun0323/decimal"

	"main/internal/book"
	"main/internal/errors"
)

// Depth is the normalized depth payload shared by the exchange feeds: rows
// of [price, size] decoded through decimal so string-quoted numbers survive
// the trip.
type Depth struct {
	Market string              `json:"market"`
	Full   bool                `json:"full"`
	Asks   [][]decimal.Decimal `json:"asks"`
	Bids   [][]decimal.Decimal `json:"bids"`
	Last   decimal.Decimal     `json:"last"`
	Time   int64               `json:"time"`
}

func DecodeDepth(data []byte) (Depth, error) {
	var d Depth
	if err := json.Unmarshal(data, &d); err != nil {
		return Depth{}, errors.Wrap(err, "unmarshal depth payload")
	}
	return d, nil
}

// AskLevels converts the raw ask rows; malformed rows are skipped.
func (d Depth) AskLevels() []book.PriceSize {
	return toLevels(d.Asks)
}

// BidLevels converts the raw bid rows; malformed rows are skipped.
func (d Depth) BidLevels() []book.PriceSize {
	return toLevels(d.Bids)
}

func toLevels(rows [][]decimal.Decimal) []book.PriceSize {
	out := make([]book.PriceSize, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		price, perr := strconv.ParseFloat(row[0].String(), 64)
		size, serr := strconv.ParseFloat(row[1].String(), 64)
		if perr != nil || serr != nil {
			continue
		}
		out = append(out, book.PriceSize{Price: price, Size: size})
	}
	return out
}

// ApplyDepth folds one depth payload into the book. A full payload replaces
// both sides; an incremental one patches the changed levels.
func ApplyDepth(b *book.Book, d Depth) {
	if d.Full {
		b.Clear()
	}
	b.UpdateAsks(d.AskLevels())
	b.UpdateBids(d.BidLevels())
}
