package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go-giftcard-verifier/apiclient"
	"go-giftcard-verifier/audit"
	"go-giftcard-verifier/loop"
	"go-giftcard-verifier/notify"
	"go-giftcard-verifier/presenter"
	redis "go-giftcard-verifier/redis"
)

type options struct {
	apiURL    string
	logLevel  string
	logFormat string

	auditStore string
	redis      redis.RedisConfig
	sentinel   redis.RedisSentinelConfig
}

// app is one kiosk session: the loop and everything it owns.
type app struct {
	loop      *loop.Loop
	client    *apiclient.HTTPClient
	notifier  *notify.Channel
	presenter *presenter.Presenter
	audit     *audit.Log
	out       io.Writer
	stop      context.CancelFunc
}

func newApp(ctx context.Context, opts *options, out io.Writer) (*app, error) {
	store, err := createAuditStore(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate audit storage: %w", err)
	}

	ctx, stop := context.WithCancel(ctx)
	l := loop.Start(ctx)
	a := &app{
		stop:   stop,
		loop:   l,
		client: apiclient.NewHTTPClient(opts.apiURL),
		audit:  audit.NewLog(store),
		out:    out,
	}
	a.notifier = notify.NewChannel(l, notify.OnChange(func(n notify.Notification, visible bool) {
		if visible {
			fmt.Fprintf(a.out, "» %s\n", n.Message)
		}
	}))
	a.presenter = presenter.New(a.notifier)
	return a, nil
}

func createAuditStore(opts *options) (audit.Store, error) {
	switch opts.auditStore {
	case "redis":
		slog.Info("Using redis audit storage")
		client, err := redis.NewRedisClient(&opts.redis)
		if err != nil {
			return nil, err
		}
		return audit.NewRedisStore(client, opts.redis.Namespace), nil
	case "redis_sentinel":
		slog.Info("Using redis sentinel audit storage")
		opts.sentinel.Password = opts.redis.Password
		opts.sentinel.Namespace = opts.redis.Namespace
		client, err := redis.NewRedisSentinelClient(&opts.sentinel)
		if err != nil {
			return nil, err
		}
		return audit.NewRedisStore(client, opts.sentinel.Namespace), nil
	case "memory", "":
		slog.Info("Using in memory audit storage")
		return audit.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%v is not a valid storage type", opts.auditStore)
	}
}

// close stops the loop and waits for it to exit.
func (a *app) close() {
	a.stop()
	<-a.loop.Done()
}

// waitFor polls cond on the loop until it holds or ctx ends.
func (a *app) waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		var ok bool
		if err := a.loop.Do(func() { ok = cond() }); err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *app) printResult() error {
	var snap presenter.Snapshot
	if err := a.loop.Do(func() { snap = a.presenter.Snapshot() }); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "status: %s\n", snap.Badge.BadgeLabel())
	if snap.View.Kind != presenter.ViewEmpty {
		fmt.Fprintf(a.out, "%s\n", snap.View.Title)
	}
	if len(snap.History) > 0 {
		fmt.Fprintln(a.out, "recent checks:")
		for _, e := range snap.History {
			fmt.Fprintf(a.out, "  %-12s %-20s %s\n", e.Brand, e.Code, e.Status.HistoryLabel())
		}
	}
	return nil
}
