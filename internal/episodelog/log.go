// Package episodelog persists rollout steps as camera images plus a
// JSON-lines record per episode.
package episodelog

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/cartridge/gather/internal/env"
)

// LogFileName is the per-episode JSON-lines file.
const LogFileName = "log.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one line of log.json.
type Record struct {
	Action env.Action `json:"action"`
	Reward float64    `json:"reward"`
	Info   env.Info   `json:"info"`
	Step   int        `json:"step"`
}

// Log writes episodes under <root>/<run>.
type Log struct {
	baseDir string
	format  string
	logger  zerolog.Logger
}

// Options configures a Log.
type Options struct {
	// Format is "png" (default) or "jpg".
	Format string
	Logger zerolog.Logger
}

// New creates the run directory and returns a Log rooted there.
func New(root, run string, opts Options) (*Log, error) {
	if run == "" {
		return nil, errors.New("run name is required")
	}
	format := opts.Format
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "jpg" {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	baseDir := filepath.Join(root, run)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", baseDir, err)
	}
	return &Log{baseDir: baseDir, format: format, logger: opts.Logger}, nil
}

// BaseDir returns the run directory.
func (l *Log) BaseDir() string {
	return l.baseDir
}

// EpisodeDir returns the directory holding one episode.
func (l *Log) EpisodeDir(episode int) string {
	return filepath.Join(l.baseDir, fmt.Sprintf("e%04d", episode))
}

// ImagePath returns the file a camera image of a step is written to.
func (l *Log) ImagePath(episode, camera, step int) string {
	return filepath.Join(l.EpisodeDir(episode), fmt.Sprintf("%d_%03d.%s", camera, step, l.format))
}

// Append writes both camera images of a step and appends its record. A
// log.json left over from an earlier run is removed at step 0.
func (l *Log) Append(episode, step int, state env.State, action env.Action, reward float64, info env.Info) error {
	episodeDir := l.EpisodeDir(episode)
	if err := os.MkdirAll(episodeDir, 0o755); err != nil {
		return fmt.Errorf("failed to create episode directory %s: %w", episodeDir, err)
	}

	for camera, img := range state {
		if err := l.writeImage(l.ImagePath(episode, camera, step), img); err != nil {
			return err
		}
	}

	logFile := filepath.Join(episodeDir, LogFileName)
	if step == 0 {
		if _, err := os.Stat(logFile); err == nil {
			l.logger.Warn().Str("file", logFile).Msg("deleting stale episode log")
			if err := os.Remove(logFile); err != nil {
				return fmt.Errorf("failed to remove stale log %s: %w", logFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", logFile, err)
		}
	}

	line, err := json.Marshal(Record{Action: action, Reward: reward, Info: info, Step: step})
	if err != nil {
		return fmt.Errorf("failed to encode step %d: %w", step, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", logFile, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", logFile, err)
	}
	return f.Close()
}

func (l *Log) writeImage(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("missing image for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := l.encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func (l *Log) encode(w io.Writer, img image.Image) error {
	if l.format == "jpg" {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	}
	return png.Encode(w, img)
}

// ReadRecords decodes every record of an episode's log.json.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return records, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
