package staging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tutorcast/internal/domain"
)

// Image is a staged upload waiting to be attached to a solve request or
// injected as session context.
type Image struct {
	ID       string
	Name     string
	MIMEType string
	Data     string // base64 payload, no data-URL prefix
	AddedAt  time.Time

	seq uint64
}

// Store holds staged images in memory. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	maxBytes int
	allowed  map[string]struct{}
	images   map[string]Image
	now      func() time.Time
	seq      uint64
}

type Option func(*Store)

// WithClock overrides the timestamp source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(maxBytes int, allowedMIMETypes []string, opts ...Option) *Store {
	allowed := make(map[string]struct{}, len(allowedMIMETypes))
	for _, m := range allowedMIMETypes {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	s := &Store{
		maxBytes: maxBytes,
		allowed:  allowed,
		images:   make(map[string]Image),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stages a new image. The payload is base64 without any data-URL
// prefix; size limits apply to the decoded size estimate.
func (s *Store) Add(name, mimeType, data string) (Image, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if _, ok := s.allowed[mime]; !ok {
		return Image{}, fmt.Errorf("unsupported image type %q", mimeType)
	}
	if data == "" {
		return Image{}, fmt.Errorf("empty image payload")
	}
	if decoded := base64DecodedLen(len(data)); s.maxBytes > 0 && decoded > s.maxBytes {
		return Image{}, fmt.Errorf("image %q exceeds %d byte limit", name, s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The sequence keeps ids unique when the same name lands twice within
	// one millisecond.
	s.seq++
	ts := s.now()
	img := Image{
		ID:       fmt.Sprintf("%s-%d-%d", name, ts.UnixMilli(), s.seq),
		Name:     name,
		MIMEType: mime,
		Data:     data,
		AddedAt:  ts,
		seq:      s.seq,
	}
	s.images[img.ID] = img
	return img, nil
}

// Remove deletes a staged image. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, id)
}

// Clear drops all staged images.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = make(map[string]Image)
}

// All returns staged images ordered oldest first.
func (s *Store) All() []Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Image, 0, len(s.images))
	for _, img := range s.images {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

// Latest returns the most recently staged image, if any.
func (s *Store) Latest() (Image, bool) {
	all := s.All()
	if len(all) == 0 {
		return Image{}, false
	}
	return all[len(all)-1], true
}

// InlineData converts staged images to request parts, oldest first.
func (s *Store) InlineData() []domain.InlineData {
	all := s.All()
	out := make([]domain.InlineData, 0, len(all))
	for _, img := range all {
		out = append(out, domain.InlineData{MIMEType: img.MIMEType, Data: img.Data})
	}
	return out
}

func base64DecodedLen(encoded int) int {
	return encoded / 4 * 3
}
