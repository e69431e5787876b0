package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amir-4m/news-editorial/internal/domain"
)

type fakeDriver struct {
	specs   []string
	jobs    []func()
	started bool
	stopped bool
}

func (d *fakeDriver) Add(spec string, job func()) error {
	d.specs = append(d.specs, spec)
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *fakeDriver) Start(context.Context) error {
	d.started = true
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRegistersEnabledAgencies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveAgency(ctx, &domain.Agency{Title: "ILNA", Slug: "ilna", CrawlEnabled: false}))
	require.NoError(t, f.store.SaveAgency(ctx, &domain.Agency{Title: "YJC", Slug: "yjc", CrawlEnabled: true}))

	driver := &fakeDriver{}
	s := NewScheduler(driver, f.store, NewTasks(NewRunner(ctx, nil, nil), nil, nil), "*/30 * * * *", "*/15 * * * *", nil)

	require.NoError(t, s.Start(ctx))
	assert.True(t, driver.started)
	assert.Equal(t, []string{"*/30 * * * *", "*/30 * * * *", "*/15 * * * *"}, driver.specs)

	require.NoError(t, s.Stop(ctx))
	assert.True(t, driver.stopped)
}
