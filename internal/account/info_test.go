package account

import (
	"bytes"
	"os"
	"testing"
	"time"

	"main/internal/enum"
)

func TestInfoReloadProfitRestoresState(t *testing.T) {
	file := t.TempDir() + "/profit.log"

	a := NewInfo(NewKeepAverage())
	a.ReloadProfit(file)

	if err := a.Executed(Execution{Side: enum.SideBuy, Price: d("100"), Size: d("1"), Commission: d("-0.5")}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.Executed(Execution{Side: enum.SideSell, Price: d("110"), Size: d("1"), Commission: d("-0.5")}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !a.Position.Realized().Equal(d("10")) {
		t.Fatalf("realized %s", a.Position.Realized())
	}

	// a fresh process replaying the journal recovers realized and commission
	b := NewInfo(NewKeepAverage())
	b.ReloadProfit(file)
	if !b.Position.Realized().Equal(d("10")) {
		t.Fatalf("replayed realized %s", b.Position.Realized())
	}
	if !b.Position.Commission().Equal(d("-1")) {
		t.Fatalf("replayed commission %s", b.Position.Commission())
	}

	// replay is idempotent
	b.ReloadProfit(file)
	if !b.Position.Realized().Equal(d("10")) {
		t.Fatalf("second replay realized %s", b.Position.Realized())
	}
}

func TestInfoTickFlushesPeriodically(t *testing.T) {
	file := t.TempDir() + "/profit.log"

	a := NewInfo(NewKeepAverage())
	a.ReloadProfit(file)

	before, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	now := time.Now()
	for i := 0; i < profitFlushEvery; i++ {
		a.Tick(now.Add(time.Duration(i) * time.Second))
	}

	after, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if got := bytes.Count(after, []byte("\n")) - bytes.Count(before, []byte("\n")); got != 1 {
		t.Fatalf("flush appended %d snapshots, want 1", got)
	}
}

func TestInfoDailyVolumeRollup(t *testing.T) {
	a := NewInfo(NewKeepAverage())
	a.Order.NewOrder(Order{ID: "o1", Side: enum.SideBuy, Price: d("100"), Size: d("2")})
	if _, err := a.Order.Executed("o1", enum.SideBuy, d("100"), d("2"), noRemain); err != nil {
		t.Fatalf("fill: %v", err)
	}

	a.DispStats()
	if !a.DailyExecSize().Equal(d("2")) {
		t.Fatalf("daily volume %s", a.DailyExecSize())
	}
	// counters reset hourly, the daily rollup keeps accumulating
	if c := a.Order.Counters(); !c.Volume.IsZero() {
		t.Fatalf("counters after stats %+v", c)
	}

	a.ResetDaily()
	if !a.DailyExecSize().IsZero() {
		t.Fatalf("daily volume after reset %s", a.DailyExecSize())
	}
}
