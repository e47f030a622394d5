// Package prefab stores reusable entity snapshots on disk, one file per prefab.
package prefab

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrCorrupt  = errors.New("prefab checksum mismatch")
	ErrNotFound = errors.New("prefab not found")
)

// Prefab is a named snapshot of a set of entities. Data holds the encoded snapshot in the
// named Format; Checksum is the xxhash64 of Data.
type Prefab struct {
	ID       uuid.UUID
	Name     string
	Format   string
	Data     []byte
	Checksum uint64
}

func newPrefab(name, format string, data []byte) *Prefab {
	return &Prefab{
		ID:       uuid.New(),
		Name:     name,
		Format:   format,
		Data:     append([]byte(nil), data...),
		Checksum: xxhash.Sum64(data),
	}
}

// Verify reports ErrCorrupt when Data no longer matches Checksum.
func (p *Prefab) Verify() error {
	if got := xxhash.Sum64(p.Data); got != p.Checksum {
		return errors.Wrapf(ErrCorrupt, "prefab %s (%q): have %016x, want %016x", p.ID, p.Name, got, p.Checksum)
	}
	return nil
}

func (p *Prefab) clone() *Prefab {
	c := *p
	c.Data = append([]byte(nil), p.Data...)
	return &c
}

// envelope is the on-disk form. Snapshot documents are text, so Data is kept as a string
// and stays readable in both file formats.
type envelope struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Format   string `json:"format" yaml:"format"`
	Checksum uint64 `json:"checksum" yaml:"checksum"`
	Data     string `json:"data" yaml:"data"`
}

func (p *Prefab) envelope() envelope {
	return envelope{
		ID:       p.ID.String(),
		Name:     p.Name,
		Format:   p.Format,
		Checksum: p.Checksum,
		Data:     string(p.Data),
	}
}

func (e envelope) prefab() (*Prefab, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "prefab id %q", e.ID)
	}
	p := &Prefab{
		ID:       id,
		Name:     e.Name,
		Format:   e.Format,
		Data:     []byte(e.Data),
		Checksum: e.Checksum,
	}
	return p, p.Verify()
}
