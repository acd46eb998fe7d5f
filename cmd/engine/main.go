package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/account"
	"main/internal/book"
	"main/internal/feed"
	"main/internal/ops"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	profile := flag.Bool("profile", false, "enable the continuous profiler")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *profile && loaded.Profiler.ServerAddress != "" {
		appName := loaded.Profiler.AppName
		if appName == "" {
			appName = "trading-state"
		}
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: appName,
			ServerAddress:   loaded.Profiler.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	var wg sync.WaitGroup
	for _, ex := range loaded.Exchanges {
		wg.Add(1)
		go func(spec ops.ExchangeSpec) {
			defer wg.Done()
			runExchange(ctx, spec)
		}(ex)
	}
	wg.Wait()
}

// runExchange owns one exchange: its book, its account state, and its feed
// pair. It blocks until shutdown.
func runExchange(ctx context.Context, spec ops.ExchangeSpec) {
	b := book.New()
	info := account.NewInfo(spec.Position)

	// warm restart before any feed traffic
	spec.Position.ReloadPositions(spec.PositionFile)
	info.ReloadProfit(spec.ProfitFile)

	public := feed.Config{
		Name: spec.Name + "/public",
		Worker: feed.NewSocketWorker(feed.SocketConfig{
			Name: spec.Name + "/public",
			URL:  spec.PublicURL,
			Subscribe: func(topics []string) any {
				return map[string]any{"method": "subscribe", "params": topics}
			},
		}),
		Topics:        spec.Topics,
		WatchdogLimit: spec.WatchdogLimit,
		Gate:          b.Gate(),
		OnFrame: func(m feed.Message) {
			d, err := feed.DecodeDepth(m.Data)
			if err != nil {
				logs.Debugf("[%s] skip frame, err: %+v", spec.Name, err)
				return
			}
			feed.ApplyDepth(b, d)
			b.RecordLag(float64(time.Since(m.Recv).Microseconds()) / 1000)
			if mid := b.Mid(); mid > 0 {
				spec.Position.SetRefPrice(decimal.NewFromFloat(mid))
			}
		},
		// stale depth is worse than no depth
		OnDisconnect: func() { b.Clear() },
	}

	private := feed.Config{
		Name: spec.Name + "/private",
		Worker: feed.NewSocketWorker(feed.SocketConfig{
			Name: spec.Name + "/private",
			URL:  spec.PrivateURL,
		}),
		WatchdogLimit: spec.WatchdogLimit,
		Gate:          info.Order.Gate(),
		OnFrame: func(m feed.Message) {
			ev, err := feed.DecodeOrderEvent(m.Data)
			if err != nil {
				logs.Debugf("[%s] skip private frame, err: %+v", spec.Name, err)
				return
			}
			applyOrderEvent(info, ev)
		},
	}

	if spec.PrivateURL != "" {
		comp := feed.NewComposite(public, private)
		go comp.Run(ctx)
	} else {
		go feed.NewSupervisor(public).Run(ctx)
	}

	logs.Infof("[%s] started, symbol=%s accounting=%T", spec.Name, spec.Symbol, spec.Position)
	maintain(ctx, info)
}

// applyOrderEvent routes one normalized private-feed event into the tracker
// and, for fills, on to position accounting.
func applyOrderEvent(info *account.Info, ev feed.OrderEvent) {
	switch ev.Type {
	case feed.EventOrdered:
		// placed by this process via REST; the feed echo is registration
		info.Order.NewOrder(account.Order{
			ID: ev.ID, Symbol: ev.Symbol, Side: ev.Side, Price: ev.Price, Size: ev.Size,
		})

	case feed.EventAccepted:
		info.Order.UpdateOrder(ev.ID, ev.Side, ev.Price, ev.Size)

	case feed.EventExecution:
		if _, err := info.Order.Executed(ev.ID, ev.Side, ev.Price, ev.Size, ev.RemainOrUnknown()); err != nil {
			return
		}
		if err := info.Executed(account.Execution{
			ID:         ev.ID,
			PosID:      ev.PosID,
			Side:       ev.Side,
			Price:      ev.Price,
			Size:       ev.Size,
			Commission: ev.Commission,
			Settle:     account.Settle(ev.Settle),
		}); err != nil {
			logs.Errorf("settle execution [%s], err: %+v", ev.ID, err)
		}

	case feed.EventCancel:
		info.Order.RemoveOrder(ev.ID)

	default:
		logs.Debugf("unhandled order event type %q", ev.Type)
	}
}

// maintain drives the per-second tracker tick plus the hourly statistics
// report and the daily rollover.
func maintain(ctx context.Context, info *account.Info) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			info.Tick(now)
			if now.Minute() == 0 && now.Second() == 0 {
				info.DispStats()
				if now.Hour() == 0 {
					info.ResetDaily()
				}
			}
		}
	}
}
