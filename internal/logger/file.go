package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultLogPath is the system-wide installation log. Creating it usually needs root,
// so OpenFileLog falls back to the user's home and then the temp dir.
const DefaultLogPath = "/var/log/setup.log"

// FileLog is the append-only installation log. It has exactly one writer per process
// and is handed explicitly to every component that records commands or outcomes.
type FileLog struct {
	logger *log.Logger
	path   string
	closer io.Closer
}

// LogCandidates returns the log file locations tried in order: the system path,
// ~/.setup.log, and setup.log in the temp dir.
func LogCandidates(primary string) []string {
	candidates := []string{}
	if primary != "" {
		candidates = append(candidates, primary)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".setup.log"))
	}
	return append(candidates, filepath.Join(os.TempDir(), "setup.log"))
}

// OpenFileLog opens the first writable candidate for appending and writes a session marker.
func OpenFileLog(candidates ...string) (*FileLog, error) {
	var lastErr error
	for _, path := range candidates {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			lastErr = err
			continue
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			Debug("[DEBUG] Log file %s not writable: %v\n", path, err)
			lastErr = err
			continue
		}
		fl := NewFileLog(f, path)
		fl.closer = f
		fl.Infof("###### New session %s ######", time.Now().Format(time.RFC822))
		return fl, nil
	}
	return nil, fmt.Errorf("no writable log file among %v: %w", candidates, lastErr)
}

// NewFileLog builds a FileLog on top of an arbitrary writer. path is only reported to the user.
func NewFileLog(w io.Writer, path string) *FileLog {
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(log.DebugLevel)
	l.SetFormatter(&log.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: true,
		DisableColors:          true,
	})
	return &FileLog{logger: l, path: path}
}

// Discard returns a FileLog that drops every entry.
func Discard() *FileLog {
	return NewFileLog(io.Discard, os.DevNull)
}

// Path is where the log lives; failure messages point the user at it.
func (l *FileLog) Path() string { return l.path }

// Logger exposes the underlying logrus logger so tests can attach hooks.
func (l *FileLog) Logger() *log.Logger { return l.logger }

func (l *FileLog) Debugf(format string, args ...any) { l.logger.Debugf(format, args...) }
func (l *FileLog) Infof(format string, args ...any)  { l.logger.Infof(format, args...) }
func (l *FileLog) Warnf(format string, args ...any)  { l.logger.Warnf(format, args...) }
func (l *FileLog) Errorf(format string, args ...any) { l.logger.Errorf(format, args...) }

// Close releases the underlying file when OpenFileLog created it.
func (l *FileLog) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
