// Package journal appends director events to daily JSON-lines files.
package journal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrClosed     = errors.New("journal is closed")
	ErrBufferFull = errors.New("journal buffer full")
)

// Writer queues records and writes them from a single goroutine to
// <dir>/<YYYY-MM-DD>.jsonl, rotating by size within a day.
type Writer struct {
	dir       string
	maxSizeMB int
	now       func() time.Time

	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu   sync.Mutex
	day  string
	file *lumberjack.Logger
}

func New(dir string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	w := &Writer{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Record queues v without blocking. A full buffer drops the record.
func (w *Writer) Record(v any) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- v:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "dir", w.dir)
		return ErrBufferFull
	}
}

// Close stops the writer after flushing queued records.
func (w *Writer) Close() error {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case v := <-w.writeCh:
			w.write(v)
		case <-w.done:
			for {
				select {
				case v := <-w.writeCh:
					w.write(v)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	day := w.now().UTC().Format("2006-01-02")
	if w.file == nil || day != w.day {
		if err := w.openLocked(day); err != nil {
			slog.Error("journal open failed", "dir", w.dir, "error", err)
			return
		}
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) openLocked(day string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	w.file = &lumberjack.Logger{
		Filename:   filepath.Join(w.dir, day+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.day = day
	slog.Debug("journal file opened", "file", w.file.Filename)
	return nil
}
