package view

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

// Result is the output of one evaluation pass. Until Commit or Discard is
// called the pass has no effect on the Instances it was built against.
type Result struct {
	// Root is the new tree.
	Root *vnode.VNode
	// Handlers maps every handler slot in Root to its callback.
	Handlers map[identity.HandlerID]vnode.Handler
	// Paths maps every NodeID in Root to the structural path it came from.
	Paths map[identity.NodeID]string

	instances *Instances
	visited   map[identity.NodeID]bool
	created   map[identity.NodeID]*scope
	done      bool
}

// Commit adopts the pass: scopes created during it become live and scopes
// that were not visited are disposed.
func (r *Result) Commit() {
	if r.done {
		return
	}
	r.done = true
	maps.Copy(r.instances.scopes, r.created)
	for id, s := range r.instances.scopes {
		if !r.visited[id] {
			s.dispose()
			delete(r.instances.scopes, id)
		}
	}
}

// Discard abandons the pass, disposing scopes created during it. Live
// scopes are left untouched.
func (r *Result) Discard() {
	if r.done {
		return
	}
	r.done = true
	for _, s := range r.created {
		s.dispose()
	}
}

// Build evaluates root against the component scopes in instances.
//
// A panic in a component body is recovered and returned as a
// *errors.BuildError. Two nodes resolving to the same NodeID abort the
// pass with an *errors.Error of kind identity: ErrDuplicateKey when they
// share a structural path (siblings with equal keys) and
// ErrIdentityCollision otherwise. On error no scope is created or
// disposed.
func Build(root View, instances *Instances) (*Result, error) {
	b := &builder{
		res: &Result{
			Handlers:  make(map[identity.HandlerID]vnode.Handler),
			Paths:     make(map[identity.NodeID]string),
			instances: instances,
			visited:   make(map[identity.NodeID]bool),
			created:   make(map[identity.NodeID]*scope),
		},
	}
	nodes, err := b.children(identity.RootPath(), []View{root})
	if err == nil && len(nodes) == 0 {
		err = &errors.Error{Op: "view.Build", Kind: errors.KindBuild, Err: errors.ErrNoRoot}
	}
	if err != nil {
		b.res.Discard()
		return nil, err
	}
	b.res.Root = nodes[0]
	return b.res, nil
}

type builder struct {
	res *Result
}

// children builds views as the ordered children of parent, splicing
// groups and skipping nils.
func (b *builder) children(parent identity.Path, views []View) ([]*vnode.VNode, error) {
	var out []*vnode.VNode
	var walk func(views []View) error
	walk = func(views []View) error {
		for _, v := range views {
			switch v := v.(type) {
			case nil:
				continue
			case Group:
				if err := walk(v); err != nil {
					return err
				}
				continue
			}
			n, err := b.node(parent, len(out), v)
			if err != nil {
				return err
			}
			if n != nil {
				out = append(out, n)
			}
		}
		return nil
	}
	if err := walk(views); err != nil {
		return nil, err
	}
	return out, nil
}

func segment(parent identity.Path, name, key string, index int) identity.Path {
	if key != "" {
		return parent.Keyed(name, key)
	}
	return parent.Child(name, index)
}

func (b *builder) node(parent identity.Path, index int, v View) (*vnode.VNode, error) {
	switch v := v.(type) {
	case *Element:
		if v == nil {
			return nil, nil
		}
		return b.element(parent, index, *v)
	case Element:
		return b.element(parent, index, v)
	case *Text:
		if v == nil {
			return nil, nil
		}
		return b.text(parent, index, *v)
	case Text:
		return b.text(parent, index, v)
	case Component:
		return b.component(parent, index, v)
	default:
		return nil, &errors.BuildError{
			View:       fmt.Sprintf("%T", v),
			Path:       parent.String(),
			Err:        fmt.Errorf("unsupported view type %T", v),
			StackTrace: errors.CaptureStack(),
			Timestamp:  time.Now(),
		}
	}
}

// register records id for path and reports identity violations.
func (b *builder) register(path identity.Path) (identity.NodeID, error) {
	id := path.ID()
	if existing, ok := b.res.Paths[id]; ok {
		err := &errors.Error{Op: "view.Build", Kind: errors.KindIdentity, Node: path.String()}
		if existing == path.String() {
			err.Err = errors.ErrDuplicateKey
		} else {
			collision := &identity.CollisionError{ID: id, Existing: existing, Incoming: path.String()}
			err.Err = fmt.Errorf("%w: %w", errors.ErrIdentityCollision, collision)
		}
		return id, err
	}
	b.res.Paths[id] = path.String()
	return id, nil
}

func (b *builder) element(parent identity.Path, index int, e Element) (*vnode.VNode, error) {
	if e.Tag == "" {
		return nil, &errors.BuildError{
			View:      "view.Element",
			Path:      parent.String(),
			Err:       fmt.Errorf("element at index %d has no tag", index),
			Timestamp: time.Now(),
		}
	}
	path := segment(parent, e.Tag, e.Key, index)
	id, err := b.register(path)
	if err != nil {
		return nil, err
	}
	n := &vnode.VNode{ID: id, Kind: vnode.KindElement, Tag: e.Tag, Props: e.Props.Clone()}

	for event, fn := range e.On {
		if fn != nil {
			b.bind(n, path, event, vnode.Handler{Action: fn})
		}
	}
	for event, fn := range e.OnInput {
		if fn == nil {
			continue
		}
		if _, dup := n.Events[event]; dup {
			return nil, &errors.BuildError{
				View:      "view.Element",
				Path:      path.String(),
				Err:       fmt.Errorf("event %q bound as both action and input", event),
				Timestamp: time.Now(),
			}
		}
		b.bind(n, path, event, vnode.Handler{Input: fn})
	}

	n.Children, err = b.children(path, e.Children)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (b *builder) bind(n *vnode.VNode, path identity.Path, event string, h vnode.Handler) {
	if n.Events == nil {
		n.Events = make(map[string]identity.HandlerID)
	}
	id := path.Handler(event)
	n.Events[event] = id
	b.res.Handlers[id] = h
}

func (b *builder) text(parent identity.Path, index int, t Text) (*vnode.VNode, error) {
	id, err := b.register(segment(parent, "text", t.Key, index))
	if err != nil {
		return nil, err
	}
	return &vnode.VNode{ID: id, Kind: vnode.KindText, Text: t.Content}, nil
}

func (b *builder) component(parent identity.Path, index int, c Component) (*vnode.VNode, error) {
	name := componentName(c)
	var key string
	if k, ok := c.(Keyed); ok {
		key = k.ViewKey()
	}
	path := segment(parent, name, key, index)
	id, err := b.register(path)
	if err != nil {
		return nil, err
	}

	sc := b.scope(id, path)
	body, err := b.safeBody(c, &Context{scope: sc, path: path})
	if err != nil {
		return nil, err
	}
	n := &vnode.VNode{ID: id, Kind: vnode.KindComponent, Tag: name}
	n.Children, err = b.children(path, []View{body})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (b *builder) scope(id identity.NodeID, path identity.Path) *scope {
	b.res.visited[id] = true
	if sc, ok := b.res.instances.scopes[id]; ok {
		return sc
	}
	sc := &scope{id: id, path: path.String(), sink: b.res.instances.sink}
	b.res.created[id] = sc
	return sc
}

// safeBody calls c.Body, recovering a panic into a *errors.BuildError.
func (b *builder) safeBody(c Component, ctx *Context) (body View, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.BuildError{
				View:       componentType(c),
				Path:       ctx.path.String(),
				Recovered:  r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
		}
	}()
	return c.Body(ctx), nil
}
