package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogFlags is the standard logger layout used once a file sink is attached.
const LogFlags = log.LstdFlags | log.Lmicroseconds | log.LUTC | log.Lshortfile

// LogFilePath returns the daily log file for now inside dir.
func LogFilePath(dir string, now time.Time) string {
	return filepath.Join(dir, now.UTC().Format("2006-01-02")+".log")
}

// AttachLogFile tees the standard logger into the day's file under dir, in
// addition to stderr. A blank dir leaves the logger alone. The returned
// closer restores stderr-only output and closes the file.
func AttachLogFile(dir string, now time.Time) (io.Closer, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := LogFilePath(dir, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetFlags(LogFlags)
	return logFile{f}, nil
}

type logFile struct{ *os.File }

func (f logFile) Close() error {
	log.SetOutput(os.Stderr)
	return f.File.Close()
}
