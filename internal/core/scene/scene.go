// Package scene wraps an ECS registry with the snapshot operations a running game uses:
// saving and loading entity sets, cloning entities and instantiating prefabs.
package scene

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/internal/core/events/bus"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/prefab"
	"github.com/zeusync/scenekit/internal/core/schema"
	"github.com/zeusync/scenekit/internal/core/snapshot"
	"github.com/zeusync/scenekit/pkg/encoding"
	"github.com/zeusync/scenekit/pkg/generic"
)

var (
	// ErrEmptyStream is returned when a load is given zero bytes. Nothing is loaded.
	ErrEmptyStream = errors.New("empty snapshot stream")
	ErrNoEntity    = errors.New("entity is not alive")
)

// Config holds the settings applied by Options.
type Config struct {
	Types  *schema.Registry
	Format encoding.Format
	Clock  *Clock
	Bus    bus.EventBus
	Logger log.Log
	Strict bool
}

type Option func(*Config)

// WithTypes replaces the built-in component table.
func WithTypes(types *schema.Registry) Option {
	return func(c *Config) { c.Types = types }
}

// WithFormat sets the encoding used by Serialize and Deserialize.
func WithFormat(format encoding.Format) Option {
	return func(c *Config) { c.Format = format }
}

func WithClock(clock *Clock) Option {
	return func(c *Config) { c.Clock = clock }
}

func WithBus(b bus.EventBus) Option {
	return func(c *Config) { c.Bus = b }
}

func WithLogger(logger log.Log) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithStrictReferences rejects relationship fields that point to entities which are neither
// in the loaded snapshot nor alive in the scene.
func WithStrictReferences() Option {
	return func(c *Config) { c.Strict = true }
}

// Scene owns a registry. It is not safe for concurrent use.
type Scene struct {
	reg     *ecs.Registry
	types   *schema.Registry
	format  encoding.Format
	clock   *Clock
	bus     bus.EventBus
	logger  log.Log
	strict  bool
	buffers *generic.BufferPool
}

func New(opts ...Option) *Scene {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Types == nil {
		cfg.Types = DefaultTypes()
	}
	if cfg.Format == nil {
		cfg.Format = encoding.JSON
	}
	if cfg.Clock == nil {
		cfg.Clock = &Clock{}
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	return &Scene{
		reg:     ecs.NewRegistry(),
		types:   cfg.Types,
		format:  cfg.Format,
		clock:   cfg.Clock,
		bus:     cfg.Bus,
		logger:  cfg.Logger.With(log.String("component", "scene")),
		strict:  cfg.Strict,
		buffers: generic.NewBufferPool(),
	}
}

func (s *Scene) Registry() *ecs.Registry { return s.reg }
func (s *Scene) Types() *schema.Registry { return s.types }
func (s *Scene) Format() encoding.Format { return s.format }
func (s *Scene) Clock() *Clock           { return s.clock }
func (s *Scene) Bus() bus.EventBus       { return s.bus }

// CreateEntity makes an entity with the default component set: a name, a root relation,
// an identity transform and the runtime markers.
func (s *Scene) CreateEntity(name string) ecs.Entity {
	e := s.reg.Create()
	ecs.SetComponent(s.reg, e, Name{Name: name})
	ecs.SetComponent(s.reg, e, Relation{Parent: ecs.Null})
	ecs.SetComponent(s.reg, e, IdentityTransform())
	s.assignDefaults([]ecs.Entity{e})
	return e
}

// MarkForDeletion flags e for the next Sweep.
func (s *Scene) MarkForDeletion(e ecs.Entity) bool {
	md, ok := ecs.GetComponent[MarkDelete](s.reg, e)
	if !ok {
		return ecs.SetComponent(s.reg, e, MarkDelete{Destroy: true})
	}
	md.Destroy = true
	return true
}

// Sweep destroys every entity flagged by MarkForDeletion and returns how many were removed.
func (s *Scene) Sweep() int {
	var doomed []ecs.Entity
	ecs.Each(s.reg, func(e ecs.Entity, md *MarkDelete) {
		if md.Destroy {
			doomed = append(doomed, e)
		}
	})
	for _, e := range doomed {
		s.reg.Destroy(e)
	}
	if len(doomed) > 0 {
		s.logger.Debug("swept entities", log.Int("count", len(doomed)))
	}
	return len(doomed)
}

// Serialize writes exactly ents to w in the scene format.
func (s *Scene) Serialize(w io.Writer, ents []ecs.Entity) error {
	cw := &countingWriter{w: w}
	out, err := snapshot.NewSubsetWriter(s.format.NewWriter(cw), s.reg, ents)
	if err != nil {
		return errors.Wrap(err, "serialize entities")
	}
	return s.finishWrite(out, cw)
}

// SerializeAll writes every live entity to w in the scene format.
func (s *Scene) SerializeAll(w io.Writer) error {
	cw := &countingWriter{w: w}
	out, err := snapshot.NewWriter(s.format.NewWriter(cw), s.reg)
	if err != nil {
		return errors.Wrap(err, "serialize scene")
	}
	return s.finishWrite(out, cw)
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

func (s *Scene) finishWrite(out *snapshot.Writer, cw *countingWriter) error {
	components, err := s.types.WriteAll(out)
	if err != nil {
		return errors.Wrap(err, "serialize components")
	}
	if err = out.Close(); err != nil {
		return errors.Wrap(err, "finish snapshot")
	}

	covered := len(out.Covered())
	s.logger.Debug("scene saved", log.Int("entities", covered), log.Int("components", components), log.Int("bytes", cw.n))
	s.publish(EventSaved, SavedEvent{Format: s.format.Name(), Entities: covered, Components: components, Bytes: cw.n})
	return nil
}

// Deserialize adds the entities of the snapshot in r to the scene. Relationship fields are
// remapped to the new entities, so loading the same snapshot twice yields two independent
// copies. Every created entity then gets a cleared MarkDelete and a Touched stamped with the
// current frame. On a decode error the entities created so far are returned with the error.
func (s *Scene) Deserialize(r io.Reader) ([]ecs.Entity, error) {
	created, components, err := s.load(r, s.format)
	if err != nil {
		return created, err
	}
	s.logger.Debug("snapshot loaded", log.Entities("created", created), log.Int("components", components))
	s.publish(EventLoaded, LoadedEvent{
		Format:     s.format.Name(),
		Created:    created,
		Components: components,
		Frame:      s.clock.Frame(),
	})
	return created, nil
}

// LoadFresh replaces the whole scene with the snapshot in r. A snapshot that does not load
// leaves the scene as it was.
func (s *Scene) LoadFresh(r io.Reader) ([]ecs.Entity, error) {
	buf, err := s.readAll(r)
	if err != nil {
		return nil, err
	}
	defer s.buffers.Put(buf)

	src, err := snapshot.Open(s.format, buf)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	// a snapshot that fails against a scratch registry must not cost the scene its entities
	if _, _, err = s.freshLoad(src, ecs.NewRegistry()); err != nil {
		return nil, err
	}
	s.reg.Clear()
	created, components, err := s.freshLoad(src, s.reg)
	if err != nil {
		return created, err
	}
	s.assignDefaults(created)

	s.logger.Info("scene replaced", log.Entities("created", created), log.Int("components", components))
	s.publish(EventLoaded, LoadedEvent{
		Format:     s.format.Name(),
		Fresh:      true,
		Created:    created,
		Components: components,
		Frame:      s.clock.Frame(),
	})
	return created, nil
}

func (s *Scene) freshLoad(src encoding.SectionReader, reg *ecs.Registry) ([]ecs.Entity, int, error) {
	loader, err := snapshot.NewLoader(src, reg)
	if err != nil {
		return nil, 0, errors.Wrap(err, "load entities")
	}
	components, err := s.types.LoadAll(loader)
	if err != nil {
		return loader.Created(), components, errors.Wrap(err, "load components")
	}
	created := loader.Created()
	if err = loader.Close(); err != nil {
		return created, components, err
	}
	return created, components, nil
}

// Clone copies e and every serialized component it holds into a new entity.
func (s *Scene) Clone(e ecs.Entity) (ecs.Entity, error) {
	if !s.reg.Valid(e) {
		return ecs.Null, errors.Wrapf(ErrNoEntity, "clone %s", e)
	}
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	out, err := snapshot.NewSubsetWriter(s.format.NewWriter(buf), s.reg, []ecs.Entity{e})
	if err != nil {
		return ecs.Null, errors.Wrap(err, "clone")
	}
	if _, err = s.types.WriteAll(out); err != nil {
		return ecs.Null, errors.Wrap(err, "clone")
	}
	if err = out.Close(); err != nil {
		return ecs.Null, errors.Wrap(err, "clone")
	}

	created, _, err := s.load(buf, s.format)
	if err != nil {
		return ecs.Null, errors.Wrap(err, "clone")
	}
	if len(created) != 1 {
		return ecs.Null, errors.Errorf("clone %s produced %d entities", e, len(created))
	}

	s.logger.Debug("entity cloned", log.Entity("source", e), log.Entity("clone", created[0]))
	s.publish(EventEntityCloned, ClonedEvent{Source: e, Clone: created[0]})
	return created[0], nil
}

// Instantiate adds a copy of the prefab's entities to the scene.
func (s *Scene) Instantiate(p *prefab.Prefab) ([]ecs.Entity, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	format, err := encoding.Lookup(p.Format)
	if err != nil {
		return nil, errors.Wrapf(err, "prefab %s", p.ID)
	}
	created, _, err := s.load(bytes.NewReader(p.Data), format)
	if err != nil {
		return created, errors.Wrapf(err, "instantiate prefab %q", p.Name)
	}

	s.logger.Debug("prefab instantiated", log.String("prefab", p.Name), log.Entities("created", created))
	s.publish(EventPrefabInstantiated, InstantiatedEvent{PrefabID: p.ID.String(), Name: p.Name, Created: created})
	return created, nil
}

// SavePrefab stores ents in lib as a new prefab encoded in the scene format.
func (s *Scene) SavePrefab(lib *prefab.Library, name string, ents []ecs.Entity) (*prefab.Prefab, error) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	out, err := snapshot.NewSubsetWriter(s.format.NewWriter(buf), s.reg, ents)
	if err != nil {
		return nil, errors.Wrapf(err, "save prefab %q", name)
	}
	if _, err = s.types.WriteAll(out); err != nil {
		return nil, errors.Wrapf(err, "save prefab %q", name)
	}
	if err = out.Close(); err != nil {
		return nil, errors.Wrapf(err, "save prefab %q", name)
	}
	return lib.Put(name, s.format.Name(), buf.Bytes())
}

// load continuous-loads the snapshot in r and runs the post-load defaults pass.
func (s *Scene) load(r io.Reader, format encoding.Format) ([]ecs.Entity, int, error) {
	buf, err := s.readAll(r)
	if err != nil {
		return nil, 0, err
	}
	defer s.buffers.Put(buf)

	src, err := snapshot.Open(format, buf)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open snapshot")
	}
	var opts []snapshot.Option
	if s.strict {
		opts = append(opts, snapshot.WithStrictReferences())
	}
	loader, err := snapshot.NewContinuousLoader(src, s.reg, opts...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "load entities")
	}
	components, err := s.types.LoadAllContinuous(loader)
	created := loader.Created()
	s.assignDefaults(created)
	if err != nil {
		return created, components, errors.Wrap(err, "load components")
	}
	return created, components, loader.Close()
}

func (s *Scene) readAll(r io.Reader) (*bytes.Buffer, error) {
	buf := s.buffers.Get()
	if _, err := buf.ReadFrom(r); err != nil {
		s.buffers.Put(buf)
		return nil, errors.Wrap(&snapshot.StreamError{Op: "read", Err: err}, "read snapshot")
	}
	if buf.Len() == 0 {
		s.buffers.Put(buf)
		return nil, ErrEmptyStream
	}
	return buf, nil
}

// assignDefaults is the post-load pass: created entities are not marked for deletion and
// are stamped with the current frame.
func (s *Scene) assignDefaults(created []ecs.Entity) {
	frame := s.clock.Frame()
	for _, e := range created {
		ecs.SetComponent(s.reg, e, MarkDelete{})
		ecs.SetComponent(s.reg, e, Touched{Frame: frame})
	}
}

func (s *Scene) publish(eventType string, data any) {
	if err := s.bus.Publish(bus.NewEvent(eventType, eventSource, data, nil)); err != nil {
		s.logger.Warn("event handler failed", log.String("event", eventType), log.Error(err))
	}
}
