// Command kiosk drives the gift card workflows from a terminal against a
// running backend. Still images on disk stand in for the camera.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"go-giftcard-verifier/audit"
	"go-giftcard-verifier/capture"
	"go-giftcard-verifier/logging"
	"go-giftcard-verifier/verification"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "kiosk",
		Short:        "Gift card verification kiosk",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Init(logging.Options{Level: opts.logLevel, Format: opts.logFormat, Writer: cmd.ErrOrStderr()})
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.apiURL, "api-url", "http://localhost:8080", "backend base URL")
	f.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "text or json")
	f.StringVar(&opts.auditStore, "audit-store", "memory", "memory, redis or redis_sentinel")
	f.StringVar(&opts.redis.Host, "redis-host", "localhost", "redis host")
	f.IntVar(&opts.redis.Port, "redis-port", 6379, "redis port")
	f.StringVar(&opts.redis.Password, "redis-password", "", "redis password")
	f.IntVar(&opts.redis.DB, "redis-db", 0, "redis database")
	f.StringVar(&opts.redis.Namespace, "redis-namespace", "giftsafer", "key namespace")
	f.StringVar(&opts.sentinel.SentinelHost, "sentinel-host", "localhost", "redis sentinel host")
	f.IntVar(&opts.sentinel.SentinelPort, "sentinel-port", 26379, "redis sentinel port")
	f.StringVar(&opts.sentinel.MasterName, "sentinel-master", "", "redis sentinel master name")
	f.StringVar(&opts.sentinel.SentinelUsername, "sentinel-username", "", "redis sentinel username")

	root.AddCommand(
		newVerifyCmd(opts),
		newScanCmd(opts),
		newCheckCmd(opts),
		newHistoryCmd(opts),
		newHealthCmd(opts),
		newBrandsCmd(),
	)
	return root
}

func newVerifyCmd(opts *options) *cobra.Command {
	var brand, code, email string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Request e-mail verification of a gift card code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			wf := verification.New(ctx, a.loop, a.presenter, a.notifier, a.client, verification.WithAudit(a.audit))

			var sub *verification.Submission
			if err := a.loop.Do(func() { sub, err = wf.Submit(brand, code, email) }); err != nil {
				return err
			}
			if errors.Is(err, verification.ErrMissingInput) {
				return fmt.Errorf("both --code and --email are required (%s)", verification.BrandHint(brand))
			}
			if err != nil {
				return err
			}

			select {
			case <-sub.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			return a.printResult()
		},
	}
	cmd.Flags().StringVar(&brand, "brand", "Amazon", "card brand")
	cmd.Flags().StringVar(&code, "code", "", "gift card code")
	cmd.Flags().StringVar(&email, "email", "", "customer e-mail")
	return cmd
}

func newScanCmd(opts *options) *cobra.Command {
	var brand, mode, email, front, back string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Capture the front and back of a card from image files and upload them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := capture.ParseMode(mode)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := newApp(ctx, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			ctrl := capture.NewController(ctx, a.loop, capture.Dependencies{
				Device:   capture.NewFileDevice(front, back),
				Client:   a.client,
				Audit:    a.audit,
				Notifier: a.notifier,
			})
			return runScan(ctx, a, ctrl, brand, m, email)
		},
	}
	cmd.Flags().StringVar(&brand, "brand", "", "card brand")
	cmd.Flags().StringVar(&mode, "mode", "balance", "scan or balance")
	cmd.Flags().StringVar(&email, "email", "", "customer e-mail")
	cmd.Flags().StringVar(&front, "front", "", "image file for the front of the card")
	cmd.Flags().StringVar(&back, "back", "", "image file for the back of the card")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("front")
	_ = cmd.MarkFlagRequired("back")
	return cmd
}

func runScan(ctx context.Context, a *app, ctrl *capture.Controller, brand string, mode capture.Mode, email string) error {
	phase := func() capture.Phase { return ctrl.Phase() }

	if err := a.loop.Do(func() { ctrl.Open(brand, mode) }); err != nil {
		return err
	}
	if err := a.waitFor(ctx, func() bool { return slices.Contains([]capture.Phase{capture.CapturingFront, capture.Failed}, phase()) }); err != nil {
		return err
	}
	var opened capture.Phase
	_ = a.loop.Do(func() { opened = phase() })
	if opened == capture.Failed {
		return capture.ErrDeviceUnavailable
	}

	var err error
	for _, want := range []capture.Phase{capture.CapturingBack, capture.ReadyToUpload} {
		if doErr := a.loop.Do(func() { err = ctrl.Capture() }); doErr != nil {
			return doErr
		}
		if err != nil {
			return fmt.Errorf("capture failed: %w", err)
		}
		var got capture.Phase
		_ = a.loop.Do(func() { got = phase() })
		if got != want {
			return fmt.Errorf("capture stopped in %s", got)
		}
	}

	if doErr := a.loop.Do(func() { err = ctrl.Upload(email) }); doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}
	// without an e-mail the controller only asks for one
	var uploading bool
	_ = a.loop.Do(func() { uploading = phase() == capture.Uploading })
	if !uploading {
		return fmt.Errorf("--email is required to upload")
	}

	if err := a.waitFor(ctx, func() bool { return phase() != capture.Uploading }); err != nil {
		return err
	}
	var final capture.Phase
	_ = a.loop.Do(func() {
		final = phase()
		ctrl.Close()
	})
	if final != capture.Complete {
		return fmt.Errorf("upload did not complete")
	}
	return nil
}

func newCheckCmd(opts *options) *cobra.Command {
	var cardType, code string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a demo balance check",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			resp, err := a.client.CheckBalance(cmd.Context(), cardType, code)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", resp.Label, resp.Message)
			if resp.Balance > 0 {
				fmt.Fprintf(out, "balance: %d %s\n", resp.Balance, resp.Currency)
			}
			fmt.Fprintf(out, "reference: %s at %s\n", resp.Reference, resp.CheckedAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&cardType, "card-type", "DemoCard", "DemoCard, SampleTunes or MockFlix")
	cmd.Flags().StringVar(&code, "code", "", "code to check")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the recorded verification and scan attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			entries, err := a.audit.Entries(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				switch e.Kind {
				case audit.KindScan:
					fmt.Fprintf(out, "%s  scan/%s  %s  %s\n", e.Time, e.Mode, e.Brand, e.Email)
				default:
					fmt.Fprintf(out, "%s  verify  %s  %s  %s\n", e.Time, e.Brand, e.Code, e.Email)
				}
			}
			return nil
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.client.HealthCheck(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newBrandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List known brands and their code formats",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, b := range verification.Brands() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", b, verification.BrandHint(b))
			}
		},
	}
}
