package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/feelscape/cache"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "feelscape.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_MoodsNewestFirst(t *testing.T) {
	s, _ := openTestStore(t)
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first, err := s.AddMood("calm", 4, "  morning walk ")
	require.NoError(t, err)
	second, err := s.AddMood(" anxious ", 2, "")
	require.NoError(t, err)

	assert.Equal(t, "morning walk", first.Notes)
	assert.Equal(t, "anxious", second.Emotion)
	assert.Greater(t, second.ID, first.ID)

	moods := s.Moods()
	require.Len(t, moods, 2)
	assert.Equal(t, second.ID, moods[0].ID)
	assert.Equal(t, first.ID, moods[1].ID)

	_, err = s.AddMood("great", 6, "")
	assert.ErrorIs(t, err, ErrInvalidScore)
	_, err = s.AddMood("awful", 0, "")
	assert.ErrorIs(t, err, ErrInvalidScore)
	assert.Len(t, s.Moods(), 2)
}

func TestStore_JournalIgnoresBlank(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok, err := s.AddJournal("   ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.Journal())

	entry, ok, err := s.AddJournal("  slept well  ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "slept well", entry.Text)
	require.Len(t, s.Journal(), 1)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	s, path := openTestStore(t)

	_, err := s.AddMood("calm", 3, "")
	require.NoError(t, err)
	_, _, err = s.AddJournal("first")
	require.NoError(t, err)
	_, _, err = s.AddJournal("second")
	require.NoError(t, err)
	require.NoError(t, s.SetPreference(PrefMood, "calm"))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Len(t, reopened.Moods(), 1)
	journal := reopened.Journal()
	require.Len(t, journal, 2)
	assert.Equal(t, "second", journal[0].Text)

	pref, ok, err := reopened.GetPreference(PrefMood)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "calm", pref)
}

func TestStore_WatchMoods(t *testing.T) {
	s, _ := openTestStore(t)

	ch, cancel := s.WatchMoods()
	defer cancel()
	assert.Empty(t, <-ch)

	_, err := s.AddMood("calm", 4, "")
	require.NoError(t, err)

	select {
	case moods := <-ch:
		require.Len(t, moods, 1)
		assert.Equal(t, "calm", moods[0].Emotion)
	case <-time.After(time.Second):
		t.Fatal("no mood update delivered")
	}
}

func TestStore_WatchJournal(t *testing.T) {
	s, _ := openTestStore(t)

	ch, cancel := s.WatchJournal()
	defer cancel()
	<-ch

	_, _, err := s.AddJournal("hello")
	require.NoError(t, err)
	assert.Len(t, <-ch, 1)
}

func TestStore_Preferences(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok, err := s.GetPreference(PrefMood)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPreference(PrefMood, "happy"))
	require.NoError(t, s.SetPreference(PrefMood, "tired"))
	v, ok, err := s.GetPreference(PrefMood)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tired", v)
}

func TestStore_SessionStore(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Get(ctx, cache.DeviceKey)
	require.ErrorIs(t, err, cache.ErrSessionNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	entry := &cache.SessionEntry{ID: "jti", UserID: "uid-1", Token: "tok", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.Set(ctx, cache.DeviceKey, entry))

	got, err := s.Get(ctx, cache.DeviceKey)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UserID)
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = s.Get(ctx, cache.DeviceKey)
	require.ErrorIs(t, err, cache.ErrSessionNotFound)

	s.now = func() time.Time { return now }
	require.NoError(t, s.Delete(ctx, cache.DeviceKey))
	_, err = s.Get(ctx, cache.DeviceKey)
	require.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestEmotionScore(t *testing.T) {
	tests := []struct {
		emotion string
		want    int
	}{
		{"Angry", 1},
		{"Sad", 2},
		{"Neutral", 3},
		{"Content", 4},
		{"Happy", 5},
		{" happy ", 5},
		{"Tired", 3},
		{"", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EmotionScore(tt.emotion), "emotion %q", tt.emotion)
	}
}

func TestStore_Trend(t *testing.T) {
	s, _ := openTestStore(t)
	assert.Empty(t, s.Trend(TrendLength))

	for i := 0; i < 16; i++ {
		_, err := s.AddMood("m", i%5+1, "")
		require.NoError(t, err)
	}

	// Entries 2..15 are the last 14, scores cycle through 1..5.
	want := make([]int, 0, TrendLength)
	for i := 2; i < 16; i++ {
		want = append(want, i%5+1)
	}
	assert.Equal(t, want, s.Trend(TrendLength))
	assert.Equal(t, []int{5, 1}, s.Trend(2))
}
