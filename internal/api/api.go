// Package api runs the Lumi service: it wires storage, the message router,
// the messaging transport and the follow-up scheduler, and serves the HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/Lumi/internal/flow"
	"github.com/BTreeMap/Lumi/internal/gamification"
	"github.com/BTreeMap/Lumi/internal/genai"
	"github.com/BTreeMap/Lumi/internal/lockfile"
	"github.com/BTreeMap/Lumi/internal/media"
	"github.com/BTreeMap/Lumi/internal/messaging"
	"github.com/BTreeMap/Lumi/internal/responses"
	"github.com/BTreeMap/Lumi/internal/scheduler"
	"github.com/BTreeMap/Lumi/internal/store"
	"github.com/BTreeMap/Lumi/internal/twiliowhatsapp"
	"github.com/BTreeMap/Lumi/internal/whatsapp"
)

const (
	// DefaultAddr is the HTTP listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultStateDir holds the lock file, SQLite databases and debug output.
	DefaultStateDir = "/var/lib/lumi"
)

// Opts holds configuration for the API server and the components it wires.
type Opts struct {
	Addr         string
	StateDir     string
	FollowUpCron string
	Location     *time.Location

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioWebhookURL string

	UnsplashOpts []media.Option
	YouTubeOpts  []media.Option
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStateDir sets the directory guarded by the instance lock.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// WithFollowUpCron sets the cron expression driving the follow-up sweep.
func WithFollowUpCron(expr string) Option {
	return func(o *Opts) { o.FollowUpCron = expr }
}

// WithLocation sets the time zone for follow-up times and calendar-day streaks.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// WithTwilio selects the Twilio transport instead of the whatsmeow linked device.
func WithTwilio(accountSID, authToken, from string) Option {
	return func(o *Opts) {
		o.TwilioAccountSID = accountSID
		o.TwilioAuthToken = authToken
		o.TwilioFrom = from
	}
}

// WithTwilioWebhookURL enables signature validation of inbound Twilio webhooks.
func WithTwilioWebhookURL(url string) Option {
	return func(o *Opts) { o.TwilioWebhookURL = url }
}

// WithUnsplash enables image search.
func WithUnsplash(opts ...media.Option) Option {
	return func(o *Opts) { o.UnsplashOpts = append(o.UnsplashOpts, opts...) }
}

// WithYouTube enables video search.
func WithYouTube(opts ...media.Option) Option {
	return func(o *Opts) { o.YouTubeOpts = append(o.YouTubeOpts, opts...) }
}

func (o Opts) twilioEnabled() bool {
	return o.TwilioAccountSID != "" && o.TwilioAuthToken != ""
}

// Run starts every component and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, waOpts []whatsapp.Option, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	cfg := Opts{
		Addr:         DefaultAddr,
		StateDir:     DefaultStateDir,
		FollowUpCron: scheduler.DefaultFollowUpSpec,
		Location:     time.UTC,
	}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if err := scheduler.ValidateSpec(cfg.FollowUpCron); err != nil {
		return err
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	msgService, twilioSvc, err := newMessagingService(ctx, cfg, waOpts)
	if err != nil {
		return err
	}

	locks := flow.NewSenderLocks()
	patterns := responses.NewService(st)
	deps := buildDependencies(cfg, st, patterns, genaiOpts, msgService)
	flowOpts := []flow.Option{flow.WithLocks(locks), flow.WithLocation(cfg.Location)}

	router, err := flow.NewRouter(deps, flowOpts...)
	if err != nil {
		return err
	}
	sweep, err := flow.NewFollowUpSweep(deps, flowOpts...)
	if err != nil {
		return err
	}

	server := NewServer(router, sweep, locks, st, patterns, twilioSvc)
	handler := messaging.NewResponseHandler(msgService, router)

	// Cron jobs share gctx with the other components.
	g, gctx := errgroup.WithContext(ctx)
	sched := scheduler.NewScheduler(scheduler.WithLocation(cfg.Location))
	if err := sched.AddJob(cfg.FollowUpCron, followUpJob(gctx, sweep)); err != nil {
		return err
	}

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}

	g.Go(func() error { return server.ListenAndServe(gctx, cfg.Addr) })
	g.Go(func() error { return handler.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		logReceipts(gctx, msgService)
		return nil
	})

	slog.Info("Run: Lumi started", "addr", cfg.Addr, "twilio", twilioSvc != nil, "followup_cron", cfg.FollowUpCron,
		"timezone", cfg.Location.String())
	err = g.Wait()
	if stopErr := msgService.Stop(); stopErr != nil {
		slog.Warn("Run: failed to stop messaging service", "error", stopErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Run: Lumi stopped")
	return nil
}

// followUpJob runs one sweep per cron tick on ctx.
func followUpJob(ctx context.Context, sweep *flow.FollowUpSweep) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		result, err := sweep.Run(ctx)
		if err != nil {
			slog.Error("Run: follow-up sweep failed", "error", err)
			return
		}
		if result.Candidates > 0 {
			slog.Info("Run: follow-up sweep finished", "candidates", result.Candidates, "sent", result.Sent,
				"skipped", result.Skipped, "failed", result.Failed)
		}
	}
}

// newMessagingService returns the Twilio service when credentials are
// configured and the whatsmeow service otherwise.
func newMessagingService(ctx context.Context, cfg Opts, waOpts []whatsapp.Option) (messaging.Service, *messaging.TwilioService, error) {
	if cfg.twilioEnabled() {
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFrom),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		var opts []messaging.TwilioOption
		if cfg.TwilioWebhookURL != "" {
			opts = append(opts, messaging.WithWebhookValidation(cfg.TwilioAuthToken, cfg.TwilioWebhookURL))
		} else {
			slog.Warn("Run: TWILIO_WEBHOOK_URL not set, inbound webhook signatures are not verified")
		}
		svc := messaging.NewTwilioService(client, opts...)
		return svc, svc, nil
	}

	waClient, err := whatsapp.NewClient(ctx, waOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
	}
	return messaging.NewWhatsAppService(waClient), nil, nil
}

// buildDependencies assembles the router collaborators. Optional collaborators
// that are not configured stay nil so the router falls back gracefully.
func buildDependencies(cfg Opts, st store.Store, patterns *responses.Service, genaiOpts []genai.Option, msgService messaging.Service) flow.Dependencies {
	deps := flow.Dependencies{
		Sessions:  st,
		History:   st,
		Matcher:   patterns,
		Gamifier:  gamification.NewService(st),
		Messenger: msgService,
	}

	if gen, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("Run: generative replies disabled", "error", err)
	} else {
		deps.Generator = gen
	}
	if len(cfg.UnsplashOpts) > 0 {
		if images, err := media.NewUnsplashClient(cfg.UnsplashOpts...); err != nil {
			slog.Warn("Run: image search disabled", "error", err)
		} else {
			deps.Images = images
		}
	}
	if len(cfg.YouTubeOpts) > 0 {
		if videos, err := media.NewYouTubeClient(cfg.YouTubeOpts...); err != nil {
			slog.Warn("Run: video search disabled", "error", err)
		} else {
			deps.Videos = videos
		}
	}
	return deps
}

// logReceipts drains delivery receipts so senders never block on a full channel.
func logReceipts(ctx context.Context, svc messaging.Service) {
	for {
		select {
		case receipt, ok := <-svc.Receipts():
			if !ok {
				return
			}
			slog.Debug("Run: delivery receipt", "to", receipt.To, "status", receipt.Status)
		case <-ctx.Done():
			return
		}
	}
}
