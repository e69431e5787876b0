package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/cms"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/storage"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

const (
	sportsLabel   = "ورزشی"
	politicsLabel = "سیاسی"
	sportsURL     = "https://www.isna.ir/service/sport"
)

type fixture struct {
	store    *storage.MemoryStore
	agency   *domain.Agency
	sports   *domain.Category
	politics *domain.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	agency := &domain.Agency{Title: "ISNA", Slug: "isna", Website: "https://www.isna.ir", CrawlEnabled: true}
	require.NoError(t, store.SaveAgency(ctx, agency))

	external := int64(12)
	sports := &domain.Category{Title: "sports", ExternalID: &external}
	require.NoError(t, store.SaveCategory(ctx, sports))
	politics := &domain.Category{Title: "politics"}
	require.NoError(t, store.SaveCategory(ctx, politics))

	require.NoError(t, store.SaveSiteCategory(ctx, &domain.SiteCategory{
		AgencyID: agency.ID, CategoryID: sports.ID, URL: sportsURL, Label: sportsLabel,
	}))

	return &fixture{store: store, agency: agency, sports: sports, politics: politics}
}

// article inserts a record in the given state and returns its id.
func (f *fixture) article(t *testing.T, nativeID int64, status domain.Status, editor *int64, mutate ...func(*domain.Article)) int64 {
	t.Helper()
	a := &domain.Article{
		AgencyID:       f.agency.ID,
		Source:         f.agency.Slug,
		NativeID:       nativeID,
		Title:          fmt.Sprintf("title %d", nativeID),
		Summary:        "summary",
		OriginalBody:   "abc",
		Body:           "abc",
		SourceCategory: politicsLabel,
		CoverImage:     fmt.Sprintf("isna/%d/cover.jpg", nativeID),
		Status:         status,
		EditorID:       editor,
	}
	for _, m := range mutate {
		m(a)
	}
	created, err := f.store.CreateIfAbsent(context.Background(), a)
	require.NoError(t, err)
	require.True(t, created)
	return a.ID
}

func (f *fixture) get(t *testing.T, id int64) *domain.Article {
	t.Helper()
	a, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T {
	return &v
}

// logBuffer captures JSON logs for assertions.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Count(l.buf.String(), `"msg":"`+msg+`"`)
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type fakeAdapter struct {
	name   string
	links  []scanner.Link
	drafts map[string]*domain.Draft
	errs   map[string]error

	// block, when set, holds CollectLinks until closed; entered is
	// signalled as a crawl starts waiting.
	block   chan struct{}
	entered chan struct{}

	mu      sync.Mutex
	visited []string
	targets []scanner.Target
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) CollectLinks(_ context.Context, targets []scanner.Target) []scanner.Link {
	if a.block != nil {
		select {
		case a.entered <- struct{}{}:
		default:
		}
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targets = append(a.targets, targets...)
	return a.links
}

func (a *fakeAdapter) CollectArticle(_ context.Context, link scanner.Link) (*domain.Draft, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visited = append(a.visited, link.URL)
	if err := a.errs[link.URL]; err != nil {
		return nil, err
	}
	d, ok := a.drafts[link.URL]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", link.URL)
	}
	c := *d
	return &c, nil
}

type memoryImages struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryImages() *memoryImages {
	return &memoryImages{data: map[string][]byte{}}
}

func (m *memoryImages) Put(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memoryImages) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[ref]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", ref, domain.ErrNotFound)
	}
	return data, nil
}

type fakeCMS struct {
	mu         sync.Mutex
	uploadErr  error
	createErr  error
	uploads    []string
	posts      []cms.Post
	remote     map[int64]cms.RemotePost
	nextPostID int64

	// uploadGate, when set, holds every upload until it is closed;
	// uploadStarted is signalled as an upload begins waiting.
	uploadGate    chan struct{}
	uploadStarted chan struct{}
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{remote: map[int64]cms.RemotePost{}, nextPostID: 9000}
}

func (f *fakeCMS) UploadMedia(_ context.Context, _ string, name string, _ []byte) (int64, error) {
	if f.uploadGate != nil {
		select {
		case f.uploadStarted <- struct{}{}:
		default:
		}
		<-f.uploadGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	f.uploads = append(f.uploads, name)
	return int64(500 + len(f.uploads)), nil
}

func (f *fakeCMS) CreatePost(_ context.Context, _ string, post cms.Post) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.posts = append(f.posts, post)
	f.nextPostID++
	f.remote[f.nextPostID] = cms.RemotePost{ID: f.nextPostID, Status: "draft", Raw: post.Content}
	return f.nextPostID, nil
}

func (f *fakeCMS) GetPost(_ context.Context, _ string, id int64) (cms.RemotePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.remote[id]
	if !ok {
		return cms.RemotePost{}, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakeCMS) setRemote(id int64, status, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote[id] = cms.RemotePost{ID: id, Status: status, Raw: raw}
}

type fakeTokens struct {
	mu          sync.Mutex
	err         error
	invalidated int
}

func (f *fakeTokens) Acquire(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func (f *fakeTokens) Invalidate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *recordingQueue) EnqueuePublish(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
