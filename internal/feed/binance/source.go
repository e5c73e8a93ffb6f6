// Package binance adapts the go-binance websocket trade stream to the
// engine's feed.Source interface. The engine core never imports this
// package; it is wired in at the application layer.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ordercore/internal/feed"
	"ordercore/internal/logger"

	gobinance "github.com/adshao/go-binance/v2"
)

type Config struct {
	// MaxBuffer caps the tick channel; ticks are dropped, not blocked on,
	// when a consumer falls behind.
	MaxBuffer int
}

type Source struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc

	statsMu sync.Mutex
	stats   feed.SourceStats
}

func New(cfg Config) *Source {
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 1024
	}
	return &Source{cfg: cfg}
}

func (s *Source) Subscribe(ctx context.Context, symbols []string, opts feed.SubscribeOptions) (<-chan feed.Tick, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols are required for trade subscription")
	}
	symbolMap := make(map[string]string, len(symbols))
	clean := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		norm := normalizeExchangeSymbol(sym)
		if norm == "" {
			continue
		}
		symbolMap[norm] = strings.ToUpper(strings.TrimSpace(sym))
		clean = append(clean, norm)
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("no valid symbols for trade subscription")
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = s.cfg.MaxBuffer
	}
	out := make(chan feed.Tick, buffer)
	subCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(out)
		s.runTradeLoop(subCtx, clean, symbolMap, out, opts)
	}()
	return out, nil
}

func (s *Source) runTradeLoop(ctx context.Context, symbols []string, symbolMap map[string]string, out chan<- feed.Tick, opts feed.SubscribeOptions) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		var errMu sync.Mutex
		var lastErr error
		handler := func(event *gobinance.WsAggTradeEvent) {
			tick, ok := convertAggTrade(event)
			if !ok {
				return
			}
			if original, ok := symbolMap[tick.Symbol]; ok {
				tick.Symbol = original
			}
			select {
			case <-ctx.Done():
			case out <- tick:
			default:
				logger.Warnf("[binance] tick channel full, drop %s", tick.Symbol)
			}
		}
		errHandler := func(err error) {
			if err == nil {
				return
			}
			errMu.Lock()
			lastErr = err
			errMu.Unlock()
		}
		doneC, stopC, err := gobinance.WsCombinedAggTradeServe(symbols, handler, errHandler)
		if err != nil {
			s.recordSubscribeError(err)
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(err)
			}
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		if opts.OnConnect != nil {
			opts.OnConnect()
		}
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		errMu.Lock()
		errCopy := lastErr
		errMu.Unlock()
		s.recordReconnect(errCopy)
		if opts.OnDisconnect != nil {
			opts.OnDisconnect(errCopy)
		}
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

func convertAggTrade(event *gobinance.WsAggTradeEvent) (feed.Tick, bool) {
	if event == nil {
		return feed.Tick{}, false
	}
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil || price <= 0 {
		return feed.Tick{}, false
	}
	qty, err := strconv.ParseFloat(event.Quantity, 64)
	if err != nil || qty < 0 {
		return feed.Tick{}, false
	}
	return feed.Tick{
		Symbol:    strings.ToUpper(event.Symbol),
		Price:     price,
		Volume:    qty,
		Timestamp: time.UnixMilli(event.TradeTime),
	}, true
}

// Binance stream names take the bare concatenated form (ETHUSDT), never
// the slash-separated pair.
func normalizeExchangeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, "/", "")
}

func (s *Source) recordSubscribeError(err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.SubscribeErrors++
	if err != nil {
		s.stats.LastError = err.Error()
	}
}

func (s *Source) recordReconnect(err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Reconnects++
	if err != nil {
		s.stats.LastError = err.Error()
	}
}

func (s *Source) Stats() feed.SourceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
