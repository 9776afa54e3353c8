package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"review-backend/internal/shared/storage/object"
)

const metaCourseID = "courseid"

// ErrNotFound indicates a missing document or version.
var ErrNotFound = errors.New("document not found")

// Version describes one stored version of a document.
type Version struct {
	Number    int
	Extension string
	CourseID  string
}

// Store keeps document blobs in an object store under FileKey keys.
type Store struct {
	objects object.Store
}

// NewStore constructs a Store over objects.
func NewStore(objects object.Store) *Store {
	return &Store{objects: objects}
}

// Upload writes data at key, tagging it with the course id.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType, courseID string) error {
	meta := map[string]string{}
	if courseID != "" {
		meta[metaCourseID] = courseID
	}
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType, meta); err != nil {
		return fmt.Errorf("upload document key=%s: %w", key, err)
	}
	return nil
}

// Download reads the document at key and returns its bytes and content type.
func (s *Store) Download(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, "", fmt.Errorf("download document key=%s: %w", key, ErrNotFound)
		}
		return nil, "", fmt.Errorf("download document key=%s: %w", key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("download document key=%s: read: %w", key, err)
	}
	return data, obj.ContentType, nil
}

// Delete removes the document at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.objects.Delete(ctx, key); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return fmt.Errorf("delete document key=%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete document key=%s: %w", key, err)
	}
	return nil
}

// LatestVersion returns the highest stored version of fileName for userID.
func (s *Store) LatestVersion(ctx context.Context, userID, fileName string) (Version, error) {
	keys, err := s.objects.List(ctx, userID+"/"+fileName+"_v")
	if err != nil {
		return Version{}, fmt.Errorf("list versions user=%s file=%s: %w", userID, fileName, err)
	}

	var latest Version
	var latestKey string
	for _, key := range keys {
		base, version, ext, ok := ParseVersionedName(path.Base(key))
		if !ok || base != fileName {
			continue
		}
		if version > latest.Number {
			latest = Version{Number: version, Extension: ext}
			latestKey = key
		}
	}
	if latest.Number == 0 {
		return Version{}, ErrNotFound
	}

	obj, err := s.objects.Get(ctx, latestKey)
	if err != nil {
		return Version{}, fmt.Errorf("read version metadata key=%s: %w", latestKey, err)
	}
	_ = obj.Body.Close()
	latest.CourseID = lookupMeta(obj.Metadata, metaCourseID)
	return latest, nil
}

// lookupMeta is case-insensitive; backends differ in how they return metadata keys.
func lookupMeta(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
