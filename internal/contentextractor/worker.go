package contentextractor

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/logger"
	"github.com/familyvault/familyvault-core/internal/store"
)

var log = logger.New("contentextractor")

const unsupportedMethod = "unsupported"

// Manager runs a single background worker draining a queue of file ids,
// extracting text via the Registry, and persisting it into file_content
// and the files_fts index (§4.6).
type Manager struct {
	db       *store.DB
	bus      *events.Logger
	registry *Registry
	queue    *fileQueue
	maxTextB int

	wake chan struct{}
	done chan struct{}
	stop chan struct{}
	once sync.Once
}

// New constructs a Manager bound to db, adding a Store reference.
// maxTextKB bounds the size of text written into the FTS index.
func New(db *store.DB, bus *events.Logger, registry *Registry, maxTextKB int) *Manager {
	db.AddRef()
	if maxTextKB <= 0 {
		maxTextKB = 256
	}
	return &Manager{
		db:       db,
		bus:      bus,
		registry: registry,
		queue:    newFileQueue(),
		maxTextB: maxTextKB * 1024,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

// Enqueue requests extraction for file id; a no-op if already queued.
func (m *Manager) Enqueue(id int64) {
	m.queue.Push(id)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// EnqueuePending loads every file whose content has never been extracted,
// or whose modified_at now postdates extracted_at, and enqueues it (§4.6
// "re-extraction happens iff modified_at > extracted_at").
func (m *Manager) EnqueuePending(ctx context.Context) error {
	ids, err := store.Query[int64](ctx, m.db, `
		SELECT f.id FROM files f
		LEFT JOIN file_content c ON c.file_id = f.id
		WHERE f.is_remote = 0
		  AND (c.file_id IS NULL OR f.modified_at > c.extracted_at)`,
		func(r *sql.Rows) (int64, error) {
			var id int64
			err := r.Scan(&id)
			return id, err
		})
	if err != nil {
		return err
	}
	for _, id := range ids {
		m.Enqueue(id)
	}
	return nil
}

// Serve drives the worker loop until the context is cancelled or Stop is
// called, satisfying suture.Service so the embedder can supervise it
// alongside the other background loops (§4.6, §5).
func (m *Manager) Serve(ctx context.Context) error {
	defer close(m.done)
	for {
		id, ok := m.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-m.stop:
				return nil
			case <-m.wake:
				continue
			case <-time.After(time.Second):
				continue
			}
		}

		if err := m.extractOne(ctx, id); err != nil {
			log.Warnf("extract file %d: %v", id, err)
		}
		m.queue.Done(id)

		select {
		case <-ctx.Done():
			return nil
		case <-m.stop:
			return nil
		default:
		}
	}
}

// Stop requests the worker to exit. If wait is true it blocks until the
// worker loop has actually returned (§4.6 "stop(wait=true) joins the
// worker").
func (m *Manager) Stop(wait bool) {
	m.once.Do(func() { close(m.stop) })
	if wait {
		<-m.done
	}
}

// Close releases the Manager's Store reference. Callers should Stop(true)
// before Close.
func (m *Manager) Close() {
	m.db.Release()
}

type fileRow struct {
	path       string
	name       string
	mime       string
	modifiedAt int64
}

func (m *Manager) extractOne(ctx context.Context, id int64) error {
	row, err := store.QueryOne[fileRow](ctx, m.db, `
		SELECT fo.path || '/' || f.relative_path, f.name, f.mime_type, f.modified_at
		FROM files f JOIN folders fo ON fo.id = f.folder_id
		WHERE f.id = ? AND f.is_remote = 0`,
		func(r *sql.Rows) (fileRow, error) {
			var fr fileRow
			err := r.Scan(&fr.path, &fr.name, &fr.mime, &fr.modifiedAt)
			return fr, err
		}, id)
	if err != nil {
		return err
	}

	extractor, ok := m.registry.Select(row.mime)
	var ext Extraction
	if !ok {
		ext = Extraction{Method: unsupportedMethod}
	} else {
		ext, err = extractor.Extract(ctx, row.path)
		if err != nil {
			ext = Extraction{Method: unsupportedMethod}
		}
	}

	text := ext.Text
	if len(text) > m.maxTextB {
		text = text[:m.maxTextB]
	}
	now := time.Now().Unix()

	return m.db.WithTransaction(ctx, func(tx *store.Tx) error {
		if _, err := tx.Execute(ctx, `DELETE FROM files_fts WHERE rowid = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Execute(ctx,
			`INSERT INTO files_fts(rowid, name, text) VALUES (?, ?, ?)`,
			id, row.name, text); err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, `
			INSERT INTO file_content(file_id, extracted_at, method, language)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET extracted_at = excluded.extracted_at,
				method = excluded.method, language = excluded.language`,
			id, now, ext.Method, ext.Language); err != nil {
			return err
		}
		return nil
	})
}
