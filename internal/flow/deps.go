// Package flow routes inbound chat messages to exactly one reply.
//
// The Router runs a fixed priority pipeline over each message: crisis
// detection, feedback and cancellation, onboarding, slash commands, local
// pattern matches, modal state handlers, the emotional scale handler and
// finally the generative fallback. The FollowUpSweep sends the daily
// check-ins users ask for. Both share a SenderLocks so that work for one
// sender never interleaves.
package flow

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/store"
)

// ResponseMatcher finds a locally configured reply for a message.
type ResponseMatcher interface {
	BestResponse(ctx context.Context, intent, message string) (string, bool, error)
}

// Generator produces free-form replies from a message and a context description.
type Generator interface {
	GenerateResponse(ctx context.Context, message, contextString string) (string, error)
}

// ImageSearcher looks up calming images.
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, count int) ([]models.MediaResult, error)
}

// VideoSearcher looks up meditation and music videos.
type VideoSearcher interface {
	SearchVideos(ctx context.Context, query string, count int) ([]models.MediaResult, error)
}

// Gamifier awards points and achievements. Both methods mutate the session in
// place and persist it.
type Gamifier interface {
	AddPoints(ctx context.Context, session *models.Session, points int) error
	CheckAchievements(ctx context.Context, session *models.Session) ([]string, error)
}

// Messenger delivers a text to a sender.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Dependencies are the collaborators used by the Router and the FollowUpSweep.
// Matcher, Generator, Images and Videos are optional.
type Dependencies struct {
	Sessions  store.SessionStore
	History   store.HistoryStore
	Matcher   ResponseMatcher
	Generator Generator
	Images    ImageSearcher
	Videos    VideoSearcher
	Gamifier  Gamifier
	Messenger Messenger
}

// Opts holds the tunables shared by Router and FollowUpSweep.
type Opts struct {
	Clock    func() time.Time
	Picker   func(n int) int
	Locks    *SenderLocks
	Location *time.Location
}

// Option configures Opts.
type Option func(*Opts)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// WithPicker overrides the random index source used for reply selection.
func WithPicker(picker func(n int) int) Option {
	return func(o *Opts) {
		o.Picker = picker
	}
}

// WithLocks shares a per-sender lock set with other components.
func WithLocks(locks *SenderLocks) Option {
	return func(o *Opts) {
		o.Locks = locks
	}
}

// WithLocation sets the time zone used for calendar days and follow-up times.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		o.Location = loc
	}
}

func buildOpts(opts []Option) Opts {
	cfg := Opts{
		Clock:    time.Now,
		Picker:   rand.IntN,
		Location: time.Local,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Locks == nil {
		cfg.Locks = NewSenderLocks()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return cfg
}
