package feed

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
)

// PlaylistName is the rolling HLS index the engine rewrites as segments are
// produced. Its modification time is the supervisor's staleness proxy.
const PlaylistName = "stream.m3u8"

// Feed is one configured video source. Identity is the channel number
// (1..N); every other attribute is derived from it, so the type carries no
// mutable state.
type Feed struct {
	ID int
}

// Source describes the network endpoint feeds are pulled from.
type Source struct {
	Host     string
	Port     int
	User     string
	Password string
	Subtype  int
}

// All returns the feeds for channels 1..n.
func All(n int) []Feed {
	out := make([]Feed, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Feed{ID: i})
	}
	return out
}

// Name returns the stable identifier used for directories, log files and
// metric labels: "cam1", "cam2", ...
func (f Feed) Name() string {
	return "cam" + strconv.Itoa(f.ID)
}

// Dir returns the feed's output directory under base.
func (f Feed) Dir(base string) string {
	return filepath.Join(base, f.Name())
}

// Playlist returns the path of the feed's rolling index file under base.
func (f Feed) Playlist(base string) string {
	return filepath.Join(f.Dir(base), PlaylistName)
}

// URL builds the RTSP source address for this feed. Credentials are escaped.
func (f Feed) URL(s Source) string {
	return f.buildURL(s).String()
}

// RedactedURL is URL with the password masked, for logs.
func (f Feed) RedactedURL(s Source) string {
	return f.buildURL(s).Redacted()
}

func (f Feed) buildURL(s Source) *url.URL {
	return &url.URL{
		Scheme:   "rtsp",
		User:     url.UserPassword(s.User, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:     "/cam/realmonitor",
		RawQuery: fmt.Sprintf("channel=%d&subtype=%d", f.ID, s.Subtype),
	}
}
