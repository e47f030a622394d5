package prefab

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/pkg/encoding"
)

const (
	fileSuffix = ".prefab"
	ioLimit    = 8
)

// Library is a directory of prefab files loaded into memory. Changes are kept in memory
// until Flush. It is safe for concurrent use.
type Library struct {
	dir    string
	logger log.Log

	mu      sync.RWMutex
	prefabs map[uuid.UUID]*Prefab
	dirty   map[uuid.UUID]struct{}
	// deleted prefabs whose files still have to be removed, by id
	deleted map[uuid.UUID]string
	paths   map[uuid.UUID]string
}

// Open reads every prefab file in dir, creating the directory when missing. A file whose
// data does not match its checksum fails the whole open with ErrCorrupt.
func Open(ctx context.Context, dir string, logger log.Log) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create prefab dir %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read prefab dir %s", dir)
	}

	lib := &Library{
		dir:     dir,
		logger:  logger.With(log.String("component", "prefab"), log.String("dir", dir)),
		prefabs: make(map[uuid.UUID]*Prefab),
		dirty:   make(map[uuid.UUID]struct{}),
		deleted: make(map[uuid.UUID]string),
		paths:   make(map[uuid.UUID]string),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ioLimit)
	var mu sync.Mutex
	for _, entry := range entries {
		if entry.IsDir() || !isPrefabFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := readFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if _, dup := lib.prefabs[p.ID]; dup {
				return errors.Errorf("prefab %s stored twice (%s)", p.ID, path)
			}
			lib.prefabs[p.ID] = p
			lib.paths[p.ID] = path
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	lib.logger.Info("prefab library opened", log.Int("prefabs", len(lib.prefabs)))
	return lib, nil
}

func isPrefabFile(name string) bool {
	ext := filepath.Ext(name)
	return strings.HasSuffix(strings.TrimSuffix(name, ext), fileSuffix)
}

func readFile(path string) (*Prefab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prefab %s", path)
	}
	var env envelope
	switch format, _ := encoding.ForPath(path); format {
	case encoding.JSON:
		err = json.Unmarshal(data, &env)
	case encoding.YAML:
		err = yaml.Unmarshal(data, &env)
	default:
		err = errors.Errorf("unsupported prefab file %s", filepath.Base(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode prefab %s", path)
	}
	p, err := env.prefab()
	if err != nil {
		return nil, errors.Wrapf(err, "load prefab %s", path)
	}
	return p, nil
}

func writeFile(path string, p *Prefab, format encoding.Format) error {
	var (
		data []byte
		err  error
	)
	env := p.envelope()
	if format == encoding.YAML {
		data, err = yaml.Marshal(&env)
	} else {
		data, err = json.MarshalIndent(&env, "", "  ")
	}
	if err != nil {
		return errors.Wrapf(err, "encode prefab %s", p.ID)
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write prefab %s", p.ID)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "commit prefab %s", p.ID)
	}
	return nil
}

// Dir returns the directory backing the library.
func (l *Library) Dir() string { return l.dir }

// Put stores data as a new prefab. The format must name a known snapshot encoding.
func (l *Library) Put(name, format string, data []byte) (*Prefab, error) {
	f, err := encoding.Lookup(format)
	if err != nil {
		return nil, err
	}
	p := newPrefab(name, f.Name(), data)

	l.mu.Lock()
	l.prefabs[p.ID] = p
	l.dirty[p.ID] = struct{}{}
	l.mu.Unlock()

	l.logger.Debug("prefab stored", log.String("id", p.ID.String()), log.String("name", name), log.Int("bytes", len(data)))
	return p.clone(), nil
}

// Get returns a copy of the prefab with the given id.
func (l *Library) Get(id uuid.UUID) (*Prefab, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.prefabs[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return p.clone(), nil
}

// Find returns the first prefab named name, in List order.
func (l *Library) Find(name string) (*Prefab, error) {
	for _, p := range l.List() {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "name %q", name)
}

// List returns copies of every prefab ordered by name, then id.
func (l *Library) List() []*Prefab {
	l.mu.RLock()
	out := make([]*Prefab, 0, len(l.prefabs))
	for _, p := range l.prefabs {
		out = append(out, p.clone())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Delete drops a prefab. Its file is removed on the next Flush.
func (l *Library) Delete(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.prefabs[id]; !ok {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	delete(l.prefabs, id)
	delete(l.dirty, id)
	if path, onDisk := l.paths[id]; onDisk {
		l.deleted[id] = path
		delete(l.paths, id)
	}
	return nil
}

// Flush writes new prefabs and removes the files of deleted ones.
func (l *Library) Flush(ctx context.Context) error {
	type job struct {
		prefab *Prefab
		path   string
		format encoding.Format
	}

	l.mu.Lock()
	writes := make([]job, 0, len(l.dirty))
	for id := range l.dirty {
		p := l.prefabs[id]
		format, err := encoding.Lookup(p.Format)
		if err != nil {
			l.mu.Unlock()
			return err
		}
		path := filepath.Join(l.dir, id.String()+fileSuffix+format.Extension())
		writes = append(writes, job{prefab: p.clone(), path: path, format: format})
	}
	removals := make(map[uuid.UUID]string, len(l.deleted))
	for id, path := range l.deleted {
		removals[id] = path
	}
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ioLimit)
	for _, w := range writes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return writeFile(w.path, w.prefab, w.format)
		})
	}
	for id, path := range removals {
		g.Go(func() error {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "remove prefab %s", id)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.logger.Error("prefab flush failed", log.Error(err))
		return err
	}

	l.mu.Lock()
	for _, w := range writes {
		id := w.prefab.ID
		if _, alive := l.prefabs[id]; alive {
			l.paths[id] = w.path
		} else {
			l.deleted[id] = w.path
		}
		delete(l.dirty, id)
	}
	for id := range removals {
		delete(l.deleted, id)
	}
	l.mu.Unlock()

	l.logger.Debug("prefab library flushed", log.Int("written", len(writes)), log.Int("removed", len(removals)))
	return nil
}
