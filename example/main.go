package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/balanceboard"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockBalanceServer(":9999")
	time.Sleep(100 * time.Millisecond)

	credits, err := balanceboard.NewMonitor("credits", "Prepaid credits", "http://localhost:9999/credits",
		balanceboard.WithBearerToken(mockToken),
		balanceboard.WithBalanceField("data.remaining"),
		balanceboard.WithTotalField("data.granted"),
		balanceboard.WithDisplayUnit("USD"),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	// the API reports usage, so the balance is total minus used
	usage, _ := balanceboard.NewMonitor("usage", "Monthly usage", "http://localhost:9999/usage",
		balanceboard.WithBalanceField("usage.used"),
		balanceboard.WithReverse(),
		balanceboard.WithTotal(500),
		balanceboard.WithDisplayUnit("requests"),
		balanceboard.WithDecimals(0),
	)

	quota, _ := balanceboard.NewMonitor("quota", "Token quota", "http://localhost:9999/quota",
		balanceboard.WithBalanceField("quota"),
		balanceboard.WithExpiryField("expiring"),
		balanceboard.WithTotal(2000),
		balanceboard.WithDisplayUnit("tokens"),
		balanceboard.WithDecimals(1),
	)

	flaky, _ := balanceboard.NewMonitor("flaky", "Flaky provider", "http://localhost:9999/flaky",
		balanceboard.WithTimeout(2*time.Second),
	)

	board, err := balanceboard.New(
		balanceboard.WithMonitors(credits, usage, quota, flaky),
		balanceboard.WithRefreshInterval(15*time.Second),
		balanceboard.WithPort(8080),
		balanceboard.WithTitle("BalanceBoard Demo"),
		balanceboard.WithStatusCallback(func(s balanceboard.MonitorStatus) {
			if s.State == balanceboard.StateError {
				slog.Warn("monitor failed", "id", s.ID, "error", s.Error)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create balanceboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  BalanceBoard Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Monitors: credits (bearer), usage (reverse), quota (string balance), flaky")
	fmt.Println("  POST http://localhost:8080/api/refresh to force a refresh")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("balanceboard error", "error", err)
		os.Exit(1)
	}
}
