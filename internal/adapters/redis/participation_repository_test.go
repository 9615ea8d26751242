package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func newTestRepo(t *testing.T) (*ParticipationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo, err := NewParticipationRepository(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "lfadmin-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func record(exp, pid, variant string, converted bool) domain.ParticipationRecord {
	return domain.ParticipationRecord{
		ExperimentID:  exp,
		ParticipantID: pid,
		VariantName:   variant,
		Converted:     converted,
		Timestamp:     time.Now(),
	}
}

func TestNewParticipationRepository_RequiresNamespace(t *testing.T) {
	_, err := NewParticipationRepository(redis.NewClient(&redis.Options{}), "")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ns:experiment:e1:participants", ParticipantsKey("ns", "e1"))
	assert.Equal(t, "ns:experiment:e1:counters", CountersKey("ns", "e1"))
}

func TestRecord_DedupAndLateConversion(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	steps := []struct {
		rec  domain.ParticipationRecord
		want domain.IngestOutcome
	}{
		{record("exp", "p1", "Control", false), domain.IngestRecorded},
		{record("exp", "p1", "Control", false), domain.IngestDuplicateIgnored},
		{record("exp", "p1", "Control", true), domain.IngestConverted},
		{record("exp", "p1", "Control", false), domain.IngestDuplicateIgnored},
		{record("exp", "p2", "Treatment:v2", true), domain.IngestRecorded},
	}
	for i, s := range steps {
		got, err := repo.Record(ctx, s.rec)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, s.want, got, "step %d", i)
	}

	snap, err := repo.Snapshot(ctx, "exp")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantCounters{Participants: 1, Conversions: 1}, snap["Control"])
	assert.Equal(t, domain.VariantCounters{Participants: 1, Conversions: 1}, snap["Treatment:v2"])
}

func TestRecord_VariantMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Record(ctx, record("exp", "p1", "Control", false))
	require.NoError(t, err)

	_, err = repo.Record(ctx, record("exp", "p1", "Treatment", true))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	snap, err := repo.Snapshot(ctx, "exp")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap["Control"].Conversions)
	assert.NotContains(t, snap, "Treatment")
}

func TestRecord_ConcurrentRedelivery(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Record(ctx, record("exp", "p1", "Control", true))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := repo.Snapshot(ctx, "exp")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantCounters{Participants: 1, Conversions: 1}, snap["Control"])
}

func TestSnapshot_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	snap, err := repo.Snapshot(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestDeleteExperiment(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Record(ctx, record("drop", "p1", "Control", true))
	require.NoError(t, err)
	_, err = repo.Record(ctx, record("keep", "p1", "Control", false))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteExperiment(ctx, "drop"))
	assert.False(t, mr.Exists(CountersKey("lfadmin-test", "drop")))
	assert.False(t, mr.Exists(ParticipantsKey("lfadmin-test", "drop")))
	assert.True(t, mr.Exists(CountersKey("lfadmin-test", "keep")))
}

func TestRecord_ServerDownIsTransient(t *testing.T) {
	repo, mr := newTestRepo(t)
	mr.Close()

	_, err := repo.Record(context.Background(), record("exp", "p1", "Control", false))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransientStore))

	assert.True(t, domain.IsKind(repo.Ping(context.Background()), domain.KindTransientStore))
}
