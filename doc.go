// Package balanceboard provides an embeddable dashboard that tracks credit
// and quota balances exposed by HTTP APIs.
//
// Each [Monitor] names an endpoint, how to authenticate to it, and where the
// balance lives in its JSON response. A [Board] refreshes every monitor on a
// fixed interval, caches resolved balances for five minutes, and serves the
// results as a dashboard, a JSON API, a Server-Sent Events stream and
// Prometheus metrics.
//
// # Quick Start
//
//	m, _ := balanceboard.NewMonitor("openai", "OpenAI", "https://api.example.com/credits",
//	    balanceboard.WithBearerToken(os.Getenv("OPENAI_KEY")),
//	    balanceboard.WithBalanceField("data.remaining"),
//	    balanceboard.WithDisplayUnit("USD"),
//	)
//	board, _ := balanceboard.New(balanceboard.WithMonitor(m))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Resolving balances
//
// The balance is read from a dot-separated path ("balance" by default).
// Strings such as "12.5 credits" are parsed leniently and anything else
// resolves to 0. With [WithReverse] the value is treated as the amount used
// and the balance becomes total minus used. Missing fields are never errors:
// only transport failures and non-JSON bodies mark a monitor as failed, and a
// failure in one monitor never affects the others.
//
// [ResolveBalance] applies the same rules to a body you already have.
//
// # Caching
//
// Resolved balances are cached per monitor id. The first refresh after
// [Board.Start] serves fresh entries; every interval tick and every
// POST /api/refresh bypasses the cache. Entries live in memory by default,
// or in a JSON file ([WithFileCache]) or Redis ([WithRedisCache]) so that a
// restart does not refetch.
package balanceboard
