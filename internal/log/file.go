package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	fileExt     = ".jsonl"
	latestLink  = "latest"
	dirPerm     = 0700
	logFilePerm = 0600
)

// FileWriter writes to dir/YYYY-MM-DD.jsonl, switching files when the day
// changes. dir/latest points at the current file.
type FileWriter struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	file *os.File
	day  string
}

// NewFileWriter opens today's file in dir, creating dir if needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	return newFileWriter(dir, time.Now)
}

func newFileWriter(dir string, now func() time.Time) (*FileWriter, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}
	fw := &FileWriter{dir: dir, now: now}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.openLocked(fw.now().Format(dayLayout)); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if day := fw.now().Format(dayLayout); day != fw.day {
		if err := fw.openLocked(day); err != nil {
			return 0, err
		}
	}
	return fw.file.Write(p)
}

// Close closes the current file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

func (fw *FileWriter) openLocked(day string) error {
	if fw.file != nil {
		fw.file.Close()
	}

	name := day + fileExt
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fw.file = f
	fw.day = day
	fw.linkLatest(name)
	return nil
}

// linkLatest repoints dir/latest at name. Failures are ignored.
func (fw *FileWriter) linkLatest(name string) {
	link := filepath.Join(fw.dir, latestLink)
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(name, tmp); err != nil {
		return
	}
	_ = os.Rename(tmp, link)
}

// Cleanup removes daily log files in dir older than retentionDays and
// returns the names it removed, oldest first. Other files are left alone.
func Cleanup(dir string, retentionDays int) []string {
	return cleanup(dir, retentionDays, time.Now())
}

func cleanup(dir string, retentionDays int, now time.Time) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, strings.TrimSuffix(name, fileExt), now.Location())
		if err != nil {
			continue
		}
		if day.Before(cutoff) && os.Remove(filepath.Join(dir, name)) == nil {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}
