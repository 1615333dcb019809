package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeTracker/config"
	"hedgeTracker/internal/adapters/logger"
	"hedgeTracker/internal/adapters/sqlite"
	"hedgeTracker/internal/app"
	"hedgeTracker/internal/metrics"
	"hedgeTracker/internal/ports"
)

// fakeStream emits its prices once and then blocks until ctx is done.
type fakeStream struct {
	prices []float64
}

func (f fakeStream) Subscribe(ctx context.Context, handler func(price float64)) error {
	for _, p := range f.prices {
		handler(p)
	}
	<-ctx.Done()
	return nil
}

func testOptions(t *testing.T) Options {
	t.Helper()
	log := logger.NewStdLoggerTo(io.Discard, logger.LevelError)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "cli.db"),
		Logger: log,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		DefaultUser:         "default",
		MonthlyVolumeTarget: 500000,
		StartingEquity:      100000,
		DefaultLeverage:     100,
		DefaultBalance:      1000,
		MaintenancePercent:  0.5,
		SafetyPercent:       30,
		MinSafeDistance:     120,
		PriceSymbol:         "ETHUSDT",
	}
	svc, err := app.NewHedgeService(cfg, log, repo, repo, nil, nil)
	require.NoError(t, err)

	return Options{Service: svc, Logger: log, Metrics: metrics.New(), HTTPAddr: "127.0.0.1:0"}
}

func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(opts)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestLogin(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "login", "trader")
	require.NoError(t, err)
	assert.Contains(t, out, "Workspace trader: monthly target $500,000.00, starting equity $100,000.00")

	out, err = run(t, opts, "login", "--user", "trader", "--target", "250000", "--equity", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "monthly target $250,000.00, starting equity $5,000.00")

	_, err = run(t, opts, "login", "trader", "--target", "0")
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestPairsWorkflow(t *testing.T) {
	opts := testOptions(t)
	_, err := run(t, opts, "login", "trader", "--equity", "5000")
	require.NoError(t, err)

	out, err := run(t, opts, "--user", "trader", "pairs", "add",
		"--id", "eth-1", "--date", "2025-06-03", "--team", "alpha", "--coin", "eth",
		"--qty", "1", "--leverage", "100",
		"--open-a", "3800", "--close-a", "3810", "--fee-a", "1.5", "--pnl-a", "10",
		"--open-b", "3801", "--close-b", "3811", "--fee-b=-2", "--pnl-b=-10.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Added pair eth-1 (2025-06-03)")

	out, err = run(t, opts, "-u", "trader", "pairs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "eth-1")
	assert.Contains(t, out, "ETH")

	out, err = run(t, opts, "-u", "trader", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "$4,999.50")
	assert.Contains(t, out, "$3.50")
	assert.Contains(t, out, "2025-06")

	out, err = run(t, opts, "-u", "trader", "pairs", "export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "pair_id,date,team,leg")
	assert.Contains(t, out, "eth-1,2025-06-03,alpha,B,ETH")

	path := filepath.Join(t.TempDir(), "pairs.csv")
	out, err = run(t, opts, "-u", "trader", "pairs", "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 pairs")
	assert.FileExists(t, path)

	out, err = run(t, opts, "-u", "trader", "pairs", "delete", "eth-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted pair eth-1")

	_, err = run(t, opts, "-u", "trader", "pairs", "delete", "eth-1")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestPairsEdit(t *testing.T) {
	opts := testOptions(t)
	_, err := run(t, opts, "login", "trader")
	require.NoError(t, err)
	_, err = run(t, opts, "-u", "trader", "pairs", "add",
		"--id", "eth-1", "--date", "2025-06-03", "--team", "alpha", "--coin", "eth",
		"--qty", "1", "--leverage", "100",
		"--open-a", "3800", "--close-a", "3810", "--fee-a", "1.5", "--pnl-a", "10",
		"--open-b", "3801", "--close-b", "3811", "--fee-b", "2", "--pnl-b=-10.5")
	require.NoError(t, err)

	out, err := run(t, opts, "-u", "trader", "pairs", "edit", "eth-1",
		"--close-a", "3812", "--pnl-a", "12", "--note", "closed late")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated pair eth-1 (2025-06-03)")

	pair, err := opts.Service.GetPair(context.Background(), "trader", "eth-1")
	require.NoError(t, err)
	assert.Equal(t, "closed late", pair.Note)
	assert.Equal(t, "alpha", pair.Team)
	assert.Equal(t, 3812.0, pair.LegA.ClosePrice)
	assert.Equal(t, 12.0, pair.LegA.PnL)
	assert.Equal(t, 1.5, pair.LegA.Fee)
	assert.Equal(t, 3811.0, pair.LegB.ClosePrice)
	assert.Equal(t, -10.5, pair.LegB.PnL)
	assert.Equal(t, 100.0, pair.LegB.Leverage)

	_, err = run(t, opts, "-u", "trader", "pairs", "edit", "eth-1", "--leverage", "20", "--leverage-b", "50")
	require.NoError(t, err)
	pair, err = opts.Service.GetPair(context.Background(), "trader", "eth-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, pair.LegA.Leverage)
	assert.Equal(t, 50.0, pair.LegB.Leverage)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"unknown pair", []string{"missing", "--note", "x"}, ports.ErrNotFound},
		{"negative quantity", []string{"eth-1", "--qty-a=-1"}, ports.ErrInvalidInput},
		{"bad date", []string{"eth-1", "--date", "03/06/2025"}, ports.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-u", "trader", "pairs", "edit"}, tt.args...)
			_, err := run(t, opts, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	pair, err = opts.Service.GetPair(context.Background(), "trader", "eth-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, pair.LegA.Quantity, "a rejected edit leaves the pair unchanged")
}

func TestPairsAddRejectsIncompleteLeg(t *testing.T) {
	opts := testOptions(t)

	_, err := run(t, opts, "pairs", "add", "--coin", "eth", "--qty", "1",
		"--open-a", "3800", "--open-b", "3801")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
	assert.Contains(t, err.Error(), "leverage")
}

const importYAML = `
- id: y1
  date: "2025-06-01"
  team: beta
  legA: {openPrice: 3800, quantity: 1, leverage: 50, fee: 1, pnl: 5, coin: ETH, openTime: "2025-06-01T09:00:00"}
  legB: {openPrice: 3801, quantity: 1, leverage: 50, fee: 1.2, pnl: -4, coin: ETH}
- date: "2025-06-02"
  legA: {openPrice: 3800, leverage: 50}
  legB: {openPrice: 3801, quantity: 1, leverage: 50}
- date: "2025-06-04"
  legA: {openPrice: 3790, quantity: 2, leverage: 20}
  legB: {openPrice: 3790.5, quantity: 2, leverage: 20}
`

func TestPairsImport(t *testing.T) {
	opts := testOptions(t)
	path := filepath.Join(t.TempDir(), "pairs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(importYAML), 0644))

	out, err := run(t, opts, "pairs", "import", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Skipped entry 2")
	assert.Contains(t, out, "Imported 2 of 3 pairs")

	pairs, err := opts.Service.ListPairs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "y1", pairs[0].ID)
	assert.Equal(t, 9, pairs[0].LegA.OpenTime.Hour())

	_, err = run(t, opts, "pairs", "import", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("legA: [1, 2"), 0644))
	_, err = run(t, opts, "pairs", "import", badPath)
	assert.Error(t, err)
}

func TestRisk(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "risk", "--side", "short", "--balance-a", "1000", "--balance-b", "1000",
		"--price", "3800", "--qty", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Reference price: $3,800.00")
	assert.Contains(t, out, "Liquidation price: $3,819.00")
	assert.Contains(t, out, "Buffer: 19.00 price points")
	assert.Contains(t, out, "Margin required: $38.00  Effective collateral: $695.00")
	assert.Contains(t, out, "Verdict: SAFE, but close to liquidation")

	out, err = run(t, opts, "risk", "--balance-a", "1000", "--price", "3800", "--qty", "0.1", "--leverage", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "leverage 2x")
	assert.Contains(t, out, "Verdict: SAFE\n")

	out, err = run(t, opts, "risk", "--qty", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Reference price: unavailable")
	assert.Contains(t, out, "Cannot compute")
	assert.Contains(t, out, "Verdict: HIGH RISK")

	_, err = run(t, opts, "risk", "--side", "up")
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestRiskPair(t *testing.T) {
	opts := testOptions(t)
	_, err := run(t, opts, "pairs", "add",
		"--id", "eth-1", "--date", "2025-06-03", "--coin", "eth", "--qty", "1", "--leverage", "100",
		"--open-a", "3800", "--open-b", "3800")
	require.NoError(t, err)

	out, err := run(t, opts, "risk", "--pair", "eth-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Pair eth-1")
	assert.Contains(t, out, "Exchange A (balance $1,000.00, entry $3,800.00, quantity 1.0000, leverage 100x)")
	assert.Contains(t, out, "Long liquidation: $3,781.00  Short liquidation: $3,819.00")
	assert.Contains(t, out, "Buffer: long 19.00 / short 19.00 price points")
	assert.Contains(t, out, "Margin required: $38.00  Effective collateral: $695.00")
	assert.Contains(t, out, "Verdict: SAFE\n")

	out, err = run(t, opts, "risk", "--pair", "eth-1", "--balance-a", "0", "--balance-b", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, "Exchange B (balance $2,000.00")
	assert.Contains(t, out, "Cannot compute")
	assert.Contains(t, out, "Verdict: HIGH RISK")

	_, err = run(t, opts, "risk", "--pair", "missing")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestPrice(t *testing.T) {
	opts := testOptions(t)

	_, err := run(t, opts, "price")
	assert.True(t, errors.Is(err, ports.ErrPriceUnavailable))

	opts.Stream = fakeStream{prices: []float64{3805.25}}
	out, err := run(t, opts, "price")
	require.NoError(t, err)
	assert.Contains(t, out, "$3,805.25")
	require.NotNil(t, opts.Service.Prices().Latest())
	assert.Equal(t, 3805.25, *opts.Service.Prices().Latest())
}

func TestServe(t *testing.T) {
	opts := testOptions(t)
	opts.Stream = fakeStream{prices: []float64{3800, 3801}}
	r := &runner{opts: opts}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		p := opts.Service.Prices().Latest()
		return p != nil && *p == 3801
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
