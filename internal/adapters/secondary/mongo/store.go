package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

const (
	recordingsCollection = "recordings"
	artifactBucket       = "artifacts"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

type recordingDoc struct {
	ID           primitive.ObjectID     `bson:"_id"`
	Title        string                 `bson:"title"`
	MimeType     string                 `bson:"mime_type"`
	Duration     float64                `bson:"duration"`
	Size         int64                  `bson:"size"`
	SourceConfig domain.RecordingConfig `bson:"source_config"`
	CreatedAt    time.Time              `bson:"created_at"`
}

func (d recordingDoc) toDomain() *domain.Recording {
	return &domain.Recording{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		MimeType:     d.MimeType,
		Duration:     d.Duration,
		Size:         d.Size,
		SourceConfig: d.SourceConfig,
		CreatedAt:    d.CreatedAt,
	}
}

// Store keeps recording metadata in one collection and artifact bytes in a
// GridFS bucket, both keyed by the same ObjectID.
type Store struct {
	recordings *mongo.Collection
	fs         *gridfs.Bucket
	logger     *zap.SugaredLogger
}

var _ ports.RecordingStore = (*Store)(nil)

func NewStore(ctx context.Context, db *mongo.Database, logger *zap.SugaredLogger) (*Store, error) {
	fs, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(artifactBucket))
	if err != nil {
		return nil, fmt.Errorf("create gridfs bucket: %w", err)
	}
	s := &Store{
		recordings: db.Collection(recordingsCollection),
		fs:         fs,
		logger:     logger,
	}

	_, err = s.recordings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create recordings index: %w", err)
	}
	return s, nil
}

func (s *Store) Save(ctx context.Context, rec domain.NewRecording) (*domain.Recording, error) {
	id := primitive.NewObjectID()
	filename := fmt.Sprintf("%s%s", id.Hex(), extensionFor(rec.MimeType))

	if err := s.fs.UploadFromStreamWithID(id, filename, bytes.NewReader(rec.Artifact)); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	doc := recordingDoc{
		ID:           id,
		Title:        rec.Title,
		MimeType:     rec.MimeType,
		Duration:     rec.Duration,
		Size:         rec.Size,
		SourceConfig: rec.SourceConfig,
		// Mongo stores milliseconds.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.recordings.InsertOne(ctx, doc); err != nil {
		if delErr := s.fs.DeleteContext(ctx, id); delErr != nil {
			s.logger.Warnw("remove orphaned artifact", "id", id.Hex(), "error", delErr)
		}
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Recording, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var doc recordingDoc
	if err := s.recordings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecordingNotFound, id)
		}
		return nil, fmt.Errorf("find recording: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	stream, err := s.fs.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: artifact %s", domain.ErrRecordingNotFound, id)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return stream, nil
}

// List returns every recording, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Recording, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.recordings.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []recordingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode recordings: %w", err)
	}
	out := make([]domain.Recording, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*domain.Recording, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc recordingDoc
	err = s.recordings.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"title": title}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecordingNotFound, id)
		}
		return nil, fmt.Errorf("update recording: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.recordings.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRecordingNotFound, id)
	}
	if err := s.fs.DeleteContext(ctx, oid); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// Clear removes every recording and artifact.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.recordings.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear recordings: %w", err)
	}
	if err := s.fs.DropContext(ctx); err != nil {
		return fmt.Errorf("drop artifacts: %w", err)
	}
	return nil
}

// TotalSize sums the size of every stored recording.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$size"}}},
		}}},
	}
	cursor, err := s.recordings.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum recording sizes: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode recording sizes: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", domain.ErrRecordingNotFound, id)
	}
	return oid, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "video/x-matroska"):
		return ".mkv"
	default:
		return ".webm"
	}
}
