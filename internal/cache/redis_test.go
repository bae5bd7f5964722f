package cache

import (
	"context"
	"testing"
	"time"

	"cogstate-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "snapshot:abc:42", snapshotKey("abc", 42))
	assert.Equal(t, "snapshots:abc:recent", recentKey("abc"))
	assert.Equal(t, "snapshots:abc:seq", seqKey("abc"))
}

func newTestClient(t *testing.T, opts Options) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts.Addr = mr.Addr()
	client, err := NewRedisClient(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func scoredSnapshot(ts time.Time, score int) models.CognitiveStateSnapshot {
	return models.CognitiveStateSnapshot{
		Timestamp:         ts,
		FatigueAssessment: models.FatigueAssessment{FatigueScore: &score},
	}
}

func scoresOf(snaps []models.CognitiveStateSnapshot) []int {
	out := make([]int, 0, len(snaps))
	for _, s := range snaps {
		if s.FatigueAssessment.FatigueScore == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, *s.FatigueAssessment.FatigueScore)
	}
	return out
}

func TestStoreSnapshot_NewestFirst(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, score := range []int{10, 20, 30} {
		require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base.Add(time.Duration(i)*time.Second), score)))
	}

	snaps, err := client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 20, 10}, scoresOf(snaps))

	snaps, err = client.RecentSnapshots(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 20}, scoresOf(snaps))
}

func TestStoreSnapshot_SharedTimestampKeepsBoth(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	ctx := context.Background()

	for _, ts := range []time.Time{time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), {}} {
		id := "same-" + ts.Format("2006")
		require.NoError(t, client.StoreSnapshot(ctx, id, scoredSnapshot(ts, 10)))
		require.NoError(t, client.StoreSnapshot(ctx, id, scoredSnapshot(ts, 90)))

		snaps, err := client.RecentSnapshots(ctx, id, 10)
		require.NoError(t, err)
		assert.Equal(t, []int{90, 10}, scoresOf(snaps), "timestamp %v", ts)
	}
}

func TestStoreSnapshot_TrimsToRecentLimit(t *testing.T) {
	client, mr := newTestClient(t, Options{RecentLimit: 3})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base.Add(time.Duration(i)*time.Second), i)))
	}

	listed, err := mr.List(recentKey("s1"))
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	snaps, err := client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3}, scoresOf(snaps))
}

func TestRecentSnapshots_SkipsExpiredEntries(t *testing.T) {
	client, mr := newTestClient(t, Options{SnapshotTTL: time.Minute})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base, 1)))
	// Only the snapshot key expires; the list still points at it.
	mr.SetTTL(snapshotKey("s1", 1), time.Second)
	mr.FastForward(2 * time.Second)
	require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base.Add(time.Second), 2)))

	snaps, err := client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, scoresOf(snaps))

	mr.FastForward(2 * time.Minute)
	snaps, err = client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRecentSnapshots_SkipsUndecodable(t *testing.T) {
	client, mr := newTestClient(t, Options{})
	ctx := context.Background()

	require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(time.Time{}, 7)))
	require.NoError(t, mr.Set(snapshotKey("s1", 1), "not json"))

	snaps, err := client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestDeleteSession(t *testing.T) {
	client, mr := newTestClient(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base, 1)))
	require.NoError(t, client.StoreSnapshot(ctx, "s1", scoredSnapshot(base.Add(time.Second), 2)))
	require.NoError(t, client.StoreSnapshot(ctx, "s2", scoredSnapshot(base, 3)))

	require.NoError(t, client.DeleteSession(ctx, "s1"))

	snaps, err := client.RecentSnapshots(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.False(t, mr.Exists(snapshotKey("s1", 1)))
	assert.False(t, mr.Exists(snapshotKey("s1", 2)))
	assert.False(t, mr.Exists(seqKey("s1")))

	snaps, err = client.RecentSnapshots(ctx, "s2", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, scoresOf(snaps))

	// Deleting an unknown session is not an error.
	require.NoError(t, client.DeleteSession(ctx, "missing"))
}
