package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"logtrigger/internal/config"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/queue"
	"logtrigger/pkg/metrics"
)

// FileSource tails a growing text file. It wakes on fsnotify events for the
// file's directory and on a poll ticker, since some writers (and network
// file systems) never produce change events.
type FileSource struct {
	path          string
	poll          time.Duration
	fromBeginning bool
	logger        logger.Logger

	file    *os.File
	info    os.FileInfo
	reader  *bufio.Reader
	offset  int64
	partial string
	lineNo  uint64
}

func NewFileSource(cfg config.FileSourceConfig, log logger.Logger) *FileSource {
	poll := cfg.PollInterval()
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &FileSource{
		path:          cfg.Path,
		poll:          poll,
		fromBeginning: cfg.FromBeginning,
		logger:        log,
	}
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) Run(ctx context.Context, q *queue.Queue[pipeline.LogLine]) error {
	defer q.Stop()
	defer s.close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warnw("File notifications unavailable, polling only", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			s.logger.Warnw("Failed to watch log directory, polling only",
				"dir", filepath.Dir(s.path),
				"error", err,
			)
		}
	}

	if err := s.open(ctx, !s.fromBeginning); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		if !s.drain(q) {
			return nil
		}
		if err := s.checkRotation(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			s.logger.Infow("File source stopped", "path", s.path, "lines", s.lineNo)
			return nil
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.logger.Warnw("File watcher error", "path", s.path, "error", err)
		}
	}
}

// open waits for the file to exist, retrying with backoff until ctx is done.
// seekEnd only applies when the file is there on the first attempt; a file
// that appears later is new and is read from the start.
func (s *FileSource) open(ctx context.Context, seekEnd bool) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 100 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(exp, ctx)

	var attempt int
	return backoff.RetryNotify(func() error {
		attempt++
		f, err := os.Open(s.path)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}

		var offset int64
		if seekEnd && attempt == 1 {
			if offset, err = f.Seek(0, io.SeekEnd); err != nil {
				f.Close()
				return err
			}
		}

		s.file = f
		s.info = info
		s.offset = offset
		s.reader = bufio.NewReader(f)
		s.partial = ""
		s.logger.Infow("Tailing log file",
			"path", s.path,
			"offset", offset,
		)
		return nil
	}, b, func(err error, next time.Duration) {
		if attempt == 1 || attempt%10 == 0 {
			s.logger.Warnw("Log file not available, retrying",
				"path", s.path,
				"attempt", attempt,
				"next_delay", next.String(),
				"error", err,
			)
		}
	})
}

func (s *FileSource) close() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// drain pushes every complete line currently available. It returns false
// when the queue has been stopped.
func (s *FileSource) drain(q *queue.Queue[pipeline.LogLine]) bool {
	if s.reader == nil {
		return true
	}

	for {
		chunk, err := s.reader.ReadString('\n')
		s.offset += int64(len(chunk))

		if err != nil {
			// keep the unterminated tail until the writer finishes the line
			s.partial += chunk
			if !errors.Is(err, io.EOF) {
				s.logger.Warnw("Error reading log file", "path", s.path, "error", err)
			}
			return true
		}

		text := strings.TrimRight(s.partial+chunk, "\r\n")
		s.partial = ""
		s.lineNo++
		if strings.TrimSpace(text) == "" {
			continue
		}

		if !q.Push(pipeline.NewLogLine(text, s.path, s.lineNo)) {
			return false
		}
		metrics.IncLinesIngested("file")
	}
}

// checkRotation detects truncation and replacement of the file.
func (s *FileSource) checkRotation(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// rotated away; reopen once the new file appears
			s.logger.Infow("Log file disappeared, waiting for it to return", "path", s.path)
			s.close()
			return s.open(ctx, false)
		}
		return nil
	}

	if !os.SameFile(info, s.info) {
		s.logger.Infow("Log file replaced, reopening", "path", s.path)
		s.close()
		return s.open(ctx, false)
	}

	if info.Size() < s.offset {
		s.logger.Infow("Log file truncated, reading from start",
			"path", s.path,
			"size", info.Size(),
			"offset", s.offset,
		)
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		s.reader.Reset(s.file)
		s.offset = 0
		s.partial = ""
		s.lineNo = 0
	}
	return nil
}
