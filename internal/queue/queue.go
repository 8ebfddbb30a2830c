// Package queue persists segments that could not be transcribed while
// offline and replays them when connectivity returns. The store is a keyed
// directory layout, durable across restarts, with init on first use.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ndisuite/voicepipe/internal/metrics"
	"github.com/ndisuite/voicepipe/internal/segment"
)

// EntryStatus is the replay lifecycle of one queued recording.
type EntryStatus string

const (
	StatusPending    EntryStatus = "pending"
	StatusProcessing EntryStatus = "processing"
	StatusDone       EntryStatus = "done"
)

// Entry is the durable metadata for one deferred recording. The audio blob
// lives beside it in a separate file.
type Entry struct {
	RecordingID string      `json:"recordingId"`
	MIMEType    string      `json:"mimeType"`
	DurationMS  int64       `json:"durationMs"`
	Status      EntryStatus `json:"status"`
	EnqueuedAt  time.Time   `json:"enqueuedAt"`
}

// TranscribeFunc replays one queued segment through the fallback engine.
type TranscribeFunc func(ctx context.Context, seg segment.Segment) error

// Queue is the offline replay store. Drain is the single writer; Enqueue and
// ListPending tolerate eventual consistency.
type Queue struct {
	logger  *slog.Logger
	dir     string
	metrics *metrics.Metrics

	mu       sync.Mutex
	initDone bool
	done     map[string]struct{}
}

// New constructs a queue rooted at dir. The directory is created on first
// use, not at construction.
func New(logger *slog.Logger, dir string, m *metrics.Metrics) *Queue {
	return &Queue{
		logger:  logger,
		dir:     dir,
		metrics: m,
		done:    map[string]struct{}{},
	}
}

func (q *Queue) initLocked() error {
	if q.initDone {
		return nil
	}
	if err := os.MkdirAll(q.dir, 0o700); err != nil {
		return fmt.Errorf("create queue dir %q: %w", q.dir, err)
	}
	q.initDone = true
	return nil
}

// Enqueue persists one segment for later replay. Re-enqueuing a recording
// that is already queued or already replayed is a no-op; an entry is never
// duplicated for the same recording ID.
func (q *Queue) Enqueue(seg segment.Segment) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.initLocked(); err != nil {
		return err
	}
	if _, replayed := q.done[seg.ID]; replayed {
		return nil
	}
	if _, err := os.Stat(q.entryPath(seg.ID)); err == nil {
		return nil
	}

	if err := os.WriteFile(q.blobPath(seg.ID), seg.Blob, 0o600); err != nil {
		return fmt.Errorf("write queued blob: %w", err)
	}

	entry := Entry{
		RecordingID: seg.ID,
		MIMEType:    seg.MIMEType,
		DurationMS:  seg.DurationMS,
		Status:      StatusPending,
		EnqueuedAt:  time.Now(),
	}
	if err := q.writeEntryLocked(entry); err != nil {
		return err
	}

	if q.metrics != nil {
		q.metrics.QueueDepth.Inc()
	}
	if q.logger != nil {
		q.logger.Info("segment enqueued for replay", "recording_id", seg.ID)
	}
	return nil
}

// ListPending returns every entry awaiting replay, oldest first.
func (q *Queue) ListPending() ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.listPendingLocked()
}

func (q *Queue) listPendingLocked() ([]Entry, error) {
	if err := q.initLocked(); err != nil {
		return nil, err
	}

	names, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, fmt.Errorf("read queue dir: %w", err)
	}

	var pending []Entry
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".json") {
			continue
		}
		entry, err := q.readEntry(filepath.Join(q.dir, name.Name()))
		if err != nil {
			if q.logger != nil {
				q.logger.Warn("skipping unreadable queue entry", "file", name.Name(), "error", err.Error())
			}
			continue
		}
		if entry.Status == StatusDone {
			continue
		}
		// A processing entry left by a crashed drain counts as pending.
		pending = append(pending, entry)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
	})
	return pending, nil
}

// Drain makes one replay attempt per pending entry. Success marks the entry
// done and detaches it from the store; failure leaves it pending for a later
// drain. Draining an already replayed entry is a no-op, so repeated drains
// are idempotent.
func (q *Queue) Drain(ctx context.Context, transcribe TranscribeFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.DrainRuns.Inc()
	}

	pending, err := q.listPendingLocked()
	if err != nil {
		return err
	}

	var firstErr error
	for _, entry := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, replayed := q.done[entry.RecordingID]; replayed {
			continue
		}

		blob, err := os.ReadFile(q.blobPath(entry.RecordingID))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("read queued blob %s: %w", entry.RecordingID, err)
			}
			continue
		}

		entry.Status = StatusProcessing
		_ = q.writeEntryLocked(entry)

		seg := segment.Segment{
			ID:         entry.RecordingID,
			Blob:       blob,
			MIMEType:   entry.MIMEType,
			DurationMS: entry.DurationMS,
			CreatedAt:  entry.EnqueuedAt,
		}

		if err := transcribe(ctx, seg); err != nil {
			entry.Status = StatusPending
			_ = q.writeEntryLocked(entry)
			if q.logger != nil {
				q.logger.Warn("replay attempt failed", "recording_id", entry.RecordingID, "error", err.Error())
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		q.done[entry.RecordingID] = struct{}{}
		q.removeLocked(entry.RecordingID)
		if q.metrics != nil {
			q.metrics.QueueReplayed.Inc()
			q.metrics.QueueDepth.Dec()
		}
		if q.logger != nil {
			q.logger.Info("queued segment replayed", "recording_id", entry.RecordingID)
		}
	}

	return firstErr
}

// AttachTo drains the queue whenever the monitor reports connectivity
// restored. The returned stop function releases the subscription.
func (q *Queue) AttachTo(ctx context.Context, events <-chan bool, unsubscribe func(), transcribe TranscribeFunc) func() {
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case online, ok := <-events:
				if !ok {
					return
				}
				if online {
					if err := q.Drain(ctx, transcribe); err != nil && q.logger != nil {
						q.logger.Warn("connectivity-triggered drain incomplete", "error", err.Error())
					}
				}
			}
		}
	}()
	return func() {
		unsubscribe()
		close(stop)
		<-drained
	}
}

func (q *Queue) writeEntryLocked(entry Entry) error {
	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	tmp := q.entryPath(entry.RecordingID) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write queue entry: %w", err)
	}
	if err := os.Rename(tmp, q.entryPath(entry.RecordingID)); err != nil {
		return fmt.Errorf("commit queue entry: %w", err)
	}
	return nil
}

func (q *Queue) readEntry(path string) (Entry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, err
	}
	if entry.RecordingID == "" {
		return Entry{}, errors.New("entry missing recording id")
	}
	return entry, nil
}

func (q *Queue) removeLocked(recordingID string) {
	_ = os.Remove(q.entryPath(recordingID))
	_ = os.Remove(q.blobPath(recordingID))
}

func (q *Queue) entryPath(recordingID string) string {
	return filepath.Join(q.dir, recordingID+".json")
}

func (q *Queue) blobPath(recordingID string) string {
	return filepath.Join(q.dir, recordingID+".blob")
}
