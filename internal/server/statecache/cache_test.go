package statecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
)

type fakeLoader struct {
	err   error
	ids   map[string][]int64
	calls atomic.Int32
}

func (f *fakeLoader) TranslatedTextFlowIDs(_ context.Context, localeID string) ([]int64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.ids[localeID], nil
}

func newTestCache(loader Loader) *Cache {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), loader)
}

func TestCache_FilterLoadsOnce(t *testing.T) {
	loader := &fakeLoader{ids: map[string][]int64{"de": {1, 2}, "fr": {3}}}
	c := newTestCache(loader)
	ctx := context.Background()

	f, err := c.Filter(ctx, "de")
	require.NoError(t, err)
	assert.True(t, f.Contains(1))
	assert.True(t, f.Contains(2))
	assert.False(t, f.Contains(3))
	assert.Equal(t, 2, f.Len())

	_, err = c.Filter(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())

	fr, err := c.Filter(ctx, "fr")
	require.NoError(t, err)
	assert.True(t, fr.Contains(3))
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestCache_TextFlowStateUpdated(t *testing.T) {
	loader := &fakeLoader{ids: map[string][]int64{"de": {1}}}
	c := newTestCache(loader)
	ctx := context.Background()

	f, err := c.Filter(ctx, "de")
	require.NoError(t, err)

	c.TextFlowStateUpdated(5, "de", models.StateApproved)
	assert.True(t, f.Contains(5))

	c.TextFlowStateUpdated(1, "de", models.StateNeedReview)
	assert.False(t, f.Contains(1))

	// не загруженная локаль не хранит обновлений
	c.TextFlowStateUpdated(7, "ja", models.StateTranslated)
	ja, err := c.Filter(ctx, "ja")
	require.NoError(t, err)
	assert.False(t, ja.Contains(7))
}

func TestCache_LoadError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	c := newTestCache(loader)

	_, err := c.Filter(context.Background(), "de")
	require.Error(t, err)

	// после ошибки следующая попытка снова идет в хранилище
	loader.err = nil
	_, err = c.Filter(context.Background(), "de")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	loader := &fakeLoader{ids: map[string][]int64{"de": {1}}}
	c := newTestCache(loader)
	ctx := context.Background()

	_, err := c.Filter(ctx, "de")
	require.NoError(t, err)
	c.Invalidate("de")
	_, err = c.Filter(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestCache_Concurrent(t *testing.T) {
	loader := &fakeLoader{ids: map[string][]int64{"de": {1, 2, 3}}}
	c := newTestCache(loader)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			f, err := c.Filter(ctx, "de")
			assert.NoError(t, err)
			c.TextFlowStateUpdated(100+id, "de", models.StateTranslated)
			_ = f.Contains(id)
		}(int64(i))
	}
	wg.Wait()

	f, err := c.Filter(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, 23, f.Len())
}

type blockingLoader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLoader) TranslatedTextFlowIDs(ctx context.Context, _ string) ([]int64, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return []int64{7}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCache_CallerCancelDoesNotFailWaiters(t *testing.T) {
	loader := &blockingLoader{started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCache(loader)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Filter(ctx, "de")
		firstErr <- err
	}()
	<-loader.started

	secondErr := make(chan error, 1)
	go func() {
		f, err := c.Filter(context.Background(), "de")
		if err == nil && !f.Contains(7) {
			err = errors.New("text flow 7 missing")
		}
		secondErr <- err
	}()

	cancel()
	close(loader.release)

	assert.NoError(t, <-firstErr)
	assert.NoError(t, <-secondErr)
}
