package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/templa/templa/backend-go/internal/document"
)

var ErrNotFound = errors.New("template not found")

// Store persists scenes by id. Implementations return copies; callers may
// not share scenes through a store.
type Store interface {
	List(ctx context.Context) ([]*document.Scene, error)
	Get(ctx context.Context, id string) (*document.Scene, error)
	Put(ctx context.Context, s *document.Scene) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps serialized scenes in memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	scenes map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scenes: make(map[string][]byte)}
}

func (m *MemoryStore) List(ctx context.Context) ([]*document.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Scene, 0, len(m.scenes))
	for _, data := range m.scenes {
		s, err := document.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortByLastModified(out)
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*document.Scene, error) {
	m.mu.RLock()
	data, ok := m.scenes[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return document.Decode(data)
}

func (m *MemoryStore) Put(ctx context.Context, s *document.Scene) error {
	data, err := document.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.scenes[s.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[id]; !ok {
		return ErrNotFound
	}
	delete(m.scenes, id)
	return nil
}

// newest first, ties by id for a stable order
func sortByLastModified(scenes []*document.Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		if scenes[i].LastModified != scenes[j].LastModified {
			return scenes[i].LastModified > scenes[j].LastModified
		}
		return scenes[i].ID < scenes[j].ID
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	last_modified BIGINT NOT NULL,
	scene         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS templates_last_modified_idx ON templates (last_modified DESC);
`

// PGStore keeps scenes as JSONB rows in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the templates table if it does not exist.
func (p *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create templates table: %w", err)
	}
	return nil
}

func (p *PGStore) List(ctx context.Context) ([]*document.Scene, error) {
	rows, err := p.pool.Query(ctx, `SELECT scene FROM templates ORDER BY last_modified DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*document.Scene
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		s, err := document.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func (p *PGStore) Get(ctx context.Context, id string) (*document.Scene, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT scene FROM templates WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return document.Decode(data)
}

func (p *PGStore) Put(ctx context.Context, s *document.Scene) error {
	data, err := document.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO templates (id, name, last_modified, scene)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, last_modified = EXCLUDED.last_modified, scene = EXCLUDED.scene`,
		s.ID, s.Name, s.LastModified, json.RawMessage(data))
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (p *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
