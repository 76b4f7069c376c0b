package mongo

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zaptest"

	"go-screen-recorder/internal/core/domain"
)

// startMongo runs one container for the whole test and returns a connected
// client. Docker is required; the test is skipped without it.
func startMongo(t *testing.T) *mongo.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate mongo container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

// freshStore gives every subtest its own database.
func freshStore(t *testing.T, client *mongo.Client) *Store {
	t.Helper()
	name := "recorder_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := NewStore(context.Background(), client.Database(name), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return s
}

func newRecording(title, data string) domain.NewRecording {
	return domain.NewRecording{
		Title:        title,
		Artifact:     []byte(data),
		Duration:     1.5,
		Size:         int64(len(data)),
		MimeType:     "video/webm;codecs=vp9,opus",
		SourceConfig: domain.DefaultRecordingConfig(),
	}
}

func TestStore(t *testing.T) {
	client := startMongo(t)
	ctx := context.Background()

	t.Run("save and read back", func(t *testing.T) {
		s := freshStore(t, client)

		saved, err := s.Save(ctx, newRecording("Demo", "artifact-bytes"))
		require.NoError(t, err)
		assert.Len(t, saved.ID, 24)
		assert.Equal(t, time.UTC, saved.CreatedAt.Location())

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.Title, got.Title)
		assert.Equal(t, saved.MimeType, got.MimeType)
		assert.InDelta(t, 1.5, got.Duration, 1e-9)
		assert.Equal(t, int64(14), got.Size)
		assert.Equal(t, domain.DefaultRecordingConfig(), got.SourceConfig)
		assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))

		rc, err := s.OpenArtifact(ctx, saved.ID)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "artifact-bytes", string(data))
	})

	t.Run("empty artifact", func(t *testing.T) {
		s := freshStore(t, client)

		saved, err := s.Save(ctx, newRecording("Empty", ""))
		require.NoError(t, err)
		rc, err := s.OpenArtifact(ctx, saved.ID)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("list newest first and total size", func(t *testing.T) {
		s := freshStore(t, client)

		total, err := s.TotalSize(ctx)
		require.NoError(t, err)
		assert.Zero(t, total)

		var ids []string
		for _, title := range []string{"one", "two", "three"} {
			rec, err := s.Save(ctx, newRecording(title, title))
			require.NoError(t, err)
			ids = append(ids, rec.ID)
		}

		recs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

		total, err = s.TotalSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len("one")+len("two")+len("three")), total)
	})

	t.Run("rename", func(t *testing.T) {
		s := freshStore(t, client)
		saved, err := s.Save(ctx, newRecording("Before", "x"))
		require.NoError(t, err)

		rec, err := s.UpdateTitle(ctx, saved.ID, "After")
		require.NoError(t, err)
		assert.Equal(t, "After", rec.Title)

		_, err = s.UpdateTitle(ctx, "0123456789abcdef01234567", "x")
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
	})

	t.Run("delete and clear", func(t *testing.T) {
		s := freshStore(t, client)
		a, err := s.Save(ctx, newRecording("a", "aaa"))
		require.NoError(t, err)
		_, err = s.Save(ctx, newRecording("b", "bb"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, a.ID))
		_, err = s.Get(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
		_, err = s.OpenArtifact(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
		assert.ErrorIs(t, s.Delete(ctx, a.ID), domain.ErrRecordingNotFound)

		require.NoError(t, s.Clear(ctx))
		recs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, recs)
		total, err := s.TotalSize(ctx)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("invalid ids are not found", func(t *testing.T) {
		s := freshStore(t, client)
		_, err := s.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "not-an-id"), domain.ErrRecordingNotFound)
	})
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".webm", extensionFor("video/webm;codecs=vp9,opus"))
	assert.Equal(t, ".mp4", extensionFor("video/mp4"))
	assert.Equal(t, ".mkv", extensionFor("video/x-matroska"))
}
