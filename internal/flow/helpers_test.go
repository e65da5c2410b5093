package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Lumi/internal/gamification"
	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/responses"
	"github.com/BTreeMap/Lumi/internal/store"
)

type fakeGenerator struct {
	mu          sync.Mutex
	reply       string
	err         error
	panicWith   any
	calls       int
	lastMessage string
	lastContext string
}

func (g *fakeGenerator) GenerateResponse(_ context.Context, message, contextString string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicWith != nil {
		panic(g.panicWith)
	}
	g.calls++
	g.lastMessage = message
	g.lastContext = contextString
	return g.reply, g.err
}

type fakeMedia struct {
	mu      sync.Mutex
	results []models.MediaResult
	err     error
	queries []string
	// onSearch runs before results are returned, while the router still holds the sender lock.
	onSearch func()
}

func (m *fakeMedia) search(query string) ([]models.MediaResult, error) {
	if m.onSearch != nil {
		m.onSearch()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	return m.results, m.err
}

func (m *fakeMedia) SearchImages(_ context.Context, query string, _ int) ([]models.MediaResult, error) {
	return m.search(query)
}

func (m *fakeMedia) SearchVideos(_ context.Context, query string, _ int) ([]models.MediaResult, error) {
	return m.search(query)
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  map[string][]string
	errTo map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[string][]string), errTo: make(map[string]error)}
}

func (m *fakeMessenger) SendMessage(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errTo[to]; err != nil {
		return err
	}
	m.sent[to] = append(m.sent[to], body)
	return nil
}

// failingSessions fails every read.
type failingSessions struct {
	store.SessionStore
}

func (failingSessions) GetSession(context.Context, string) (*models.Session, error) {
	return nil, errors.New("connection reset")
}

type testEnv struct {
	t         *testing.T
	now       time.Time
	store     *store.InMemoryStore
	patterns  *responses.Service
	generator *fakeGenerator
	images    *fakeMedia
	videos    *fakeMedia
	messenger *fakeMessenger
	locks     *SenderLocks
	router    *Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		t:         t,
		now:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		store:     store.NewInMemoryStore(),
		generator: &fakeGenerator{reply: "Te escucho 💬"},
		images:    &fakeMedia{results: []models.MediaResult{{URL: "https://images.example/calm.jpg"}}},
		videos:    &fakeMedia{results: []models.MediaResult{{URL: "https://www.youtube.com/watch?v=abc"}}},
		messenger: newFakeMessenger(),
		locks:     NewSenderLocks(),
	}
	env.patterns = responses.NewService(env.store, responses.WithPicker(func(int) int { return 0 }))
	router, err := NewRouter(env.deps(), env.opts()...)
	require.NoError(t, err)
	env.router = router
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		Sessions:  e.store,
		History:   e.store,
		Matcher:   e.patterns,
		Generator: e.generator,
		Images:    e.images,
		Videos:    e.videos,
		Gamifier:  gamification.NewService(e.store, gamification.WithClock(e.clock)),
		Messenger: e.messenger,
	}
}

func (e *testEnv) opts() []Option {
	return []Option{
		WithClock(e.clock),
		WithPicker(func(int) int { return 0 }),
		WithLocks(e.locks),
		WithLocation(time.UTC),
	}
}

// seed stores a named session in general mode and returns it.
func (e *testEnv) seed(senderID, name string, mutate func(*models.Session)) *models.Session {
	e.t.Helper()
	sess := models.NewSession(senderID, e.now.Add(-48*time.Hour))
	sess.UserName = name
	if mutate != nil {
		mutate(sess)
	}
	require.NoError(e.t, e.store.CreateSession(context.Background(), sess))
	return sess
}

func (e *testEnv) session(senderID string) *models.Session {
	e.t.Helper()
	sess, err := e.store.GetSession(context.Background(), senderID)
	require.NoError(e.t, err)
	return sess
}

func (e *testEnv) send(senderID, text string) models.Reply {
	return e.router.ProcessMessage(context.Background(), text, senderID)
}
