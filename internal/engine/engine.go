package engine

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/camherd/camherd/internal/feed"
)

// ErrEngineNotFound reports that the transcoding engine binary could not be
// resolved in PATH.
var ErrEngineNotFound = errors.New("transcoding engine not found")

// Check resolves the transcoding engine binary in PATH and returns its
// location. A failure here is fatal at boot: running the supervisor without
// an engine would restart-loop every feed forever.
func Check(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrEngineNotFound, binary, err)
	}
	return path, nil
}

// Profile is the fixed HLS transcode profile applied to every feed: copy the
// video stream unmodified, cut segments of SegmentSeconds, keep a rolling
// playlist of PlaylistSize entries and delete segments falling out of it.
type Profile struct {
	SegmentSeconds int
	PlaylistSize   int
	RTSPTimeout    time.Duration
}

// FFmpeg builds the engine invocation for a feed. The argument list is fixed;
// only the source URL and output path vary per feed.
type FFmpeg struct {
	Binary  string
	Source  feed.Source
	Profile Profile
	BaseDir string
}

// Command constructs the *exec.Cmd for one feed. The caller owns stdio
// wiring and process attributes; nothing is started here.
func (e *FFmpeg) Command(f feed.Feed) *exec.Cmd {
	args := []string{
		"-rtsp_transport", "tcp",
		"-timeout", strconv.FormatInt(e.Profile.RTSPTimeout.Microseconds(), 10),
		"-i", f.URL(e.Source),
		"-c:v", "copy",
		"-hls_time", strconv.Itoa(e.Profile.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(e.Profile.PlaylistSize),
		"-hls_flags", "delete_segments",
		"-start_number", "1",
		f.Playlist(e.BaseDir),
	}
	// #nosec G204
	return exec.Command(e.Binary, args...)
}
