package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	fieldDownloaded = "downloaded"
	fieldURL        = "url"
	thumbSuffix     = ":thumb"
)

// MediaStateStore shares downloaded and converted flags between processes rendering the
// same chats. The downloaded hash never expires; converted thumbs expire after thumbTTL.
type MediaStateStore struct {
	client   *Client
	prefix   string
	thumbTTL time.Duration
}

var _ media.IStateStore = (*MediaStateStore)(nil)

func NewMediaStateStore(client *Client, thumbTTL time.Duration) *MediaStateStore {
	return &MediaStateStore{
		client:   client,
		prefix:   client.Key("media") + ":",
		thumbTTL: thumbTTL,
	}
}

func (s *MediaStateStore) stateKey(id string) string { return s.prefix + id }
func (s *MediaStateStore) thumbKey(id string) string { return s.prefix + id + thumbSuffix }

func (s *MediaStateStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *MediaStateStore) Get(ctx context.Context, id string) (media.State, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return media.State{}, nil
	}

	cmds := valkeylib.Commands{
		s.inner().B().Hgetall().Key(s.stateKey(id)).Build(),
		s.inner().B().Get().Key(s.thumbKey(id)).Build(),
	}
	res := s.inner().DoMulti(ctx, cmds...)

	var st media.State
	fields, err := res[0].AsStrMap()
	if err != nil && !IsNil(err) {
		return st, fmt.Errorf("failed to get media state: %w", err)
	}
	st.Downloaded = fields[fieldDownloaded] == "1"
	st.URL = fields[fieldURL]

	thumb, err := res[1].AsBytes()
	switch {
	case err == nil:
		st.ThumbConverted = true
		st.ConvertedThumb = thumb
	case !IsNil(err):
		return st, fmt.Errorf("failed to get converted thumb: %w", err)
	}
	return st, nil
}

func (s *MediaStateStore) MarkDownloaded(ctx context.Context, id, url string) error {
	cmd := s.inner().B().Hset().Key(s.stateKey(id)).FieldValue().
		FieldValue(fieldDownloaded, "1").
		FieldValue(fieldURL, url).
		Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to mark media downloaded: %w", err)
	}
	return nil
}

func (s *MediaStateStore) MarkThumbConverted(ctx context.Context, id string, thumb []byte) error {
	var cmd valkeylib.Completed
	if s.thumbTTL > 0 {
		cmd = s.inner().B().Set().Key(s.thumbKey(id)).Value(valkeylib.BinaryString(thumb)).Ex(s.thumbTTL).Build()
	} else {
		cmd = s.inner().B().Set().Key(s.thumbKey(id)).Value(valkeylib.BinaryString(thumb)).Build()
	}
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store converted thumb: %w", err)
	}
	return nil
}
