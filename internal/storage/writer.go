package storage

import (
	"sync"
	"time"

	"github.com/cybermp/beacon/internal/registry"
	"github.com/rs/zerolog/log"
)

type opKind int

const (
	opSaveServer opKind = iota
	opHistory
	opRecordBan
	opExpireBans
)

// op is one queued persistence write.
type op struct {
	ts        time.Time
	expiresAt *time.Time
	server    registry.Record
	serverID  string
	status    string
	banKind   string
	target    string
	reason    string
	kind      opKind
	players   int
}

// Writer is the asynchronous write-behind sink between the registry and the
// repository. Registry operations enqueue events without blocking; a single
// background worker drains the queue in submission order, so related writes
// (a ban audit row and its later expiry) land in the order they happened.
// A slow or failing database never stalls announce handling, failures are
// only logged.
type Writer struct {
	repo  *Repository
	queue chan op
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWriter creates a Writer over the repository.
func NewWriter(repo *Repository) *Writer {
	return &Writer{
		repo:  repo,
		queue: make(chan op, 1000),
	}
}

// Start launches the background worker.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.worker()
}

// Stop closes the queue and waits until every queued write has been applied.
// Events enqueued after Stop are dropped. Stop is idempotent.
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

// worker drains the queue until it is closed.
func (w *Writer) worker() {
	defer w.wg.Done()

	for job := range w.queue {
		w.apply(job)
	}
}

// apply executes one queued write against the repository.
func (w *Writer) apply(job op) {
	var err error

	switch job.kind {
	case opSaveServer:
		err = w.repo.SaveServer(job.server)
	case opHistory:
		err = w.repo.AppendHistory(job.serverID, job.ts, job.players, job.status)
	case opRecordBan:
		err = w.repo.RecordBan(job.banKind, job.target, job.reason, job.ts, job.expiresAt)
	case opExpireBans:
		err = w.repo.ExpireBans(job.banKind, job.target, job.ts)
	}

	if err != nil {
		log.Error().Err(err).Int("op", int(job.kind)).Msg("Persistence write failed")
	}
}

// enqueue submits a write without blocking. When the queue is full or the
// writer has been stopped the event is dropped with a warning; the in-memory
// registry stays the source of truth.
func (w *Writer) enqueue(job op) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		log.Warn().Int("op", int(job.kind)).Msg("Persistence queue closed, event dropped")
		return
	}

	select {
	case w.queue <- job:
	default:
		log.Warn().Int("op", int(job.kind)).Msg("Persistence queue full, event dropped")
	}
}

// SaveServer implements registry.Sink.
func (w *Writer) SaveServer(rec registry.Record) {
	w.enqueue(op{kind: opSaveServer, server: rec})
}

// AppendHistory implements registry.Sink.
func (w *Writer) AppendHistory(serverID string, ts time.Time, playerCount int, status string) {
	w.enqueue(op{kind: opHistory, serverID: serverID, ts: ts, players: playerCount, status: status})
}

// RecordBan implements registry.Sink.
func (w *Writer) RecordBan(kind, target, reason string, bannedAt time.Time, expiresAt *time.Time) {
	w.enqueue(op{kind: opRecordBan, banKind: kind, target: target, reason: reason, ts: bannedAt, expiresAt: expiresAt})
}

// ExpireBans implements registry.Sink.
func (w *Writer) ExpireBans(kind, target string, asOf time.Time) {
	w.enqueue(op{kind: opExpireBans, banKind: kind, target: target, ts: asOf})
}
