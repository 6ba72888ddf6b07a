// Package view turns a graph of views into a VNode tree.
//
// A View is one of:
//
//   - Element: a primitive node with a tag, props, children and handlers
//   - Text: a text leaf
//   - Component: user code whose Body is evaluated on every pass
//   - Group: a fragment whose members are spliced into the parent
//   - nil: renders nothing
//
// Every node gets a structural path from its ancestors plus a segment of
// its own: the view's type token with its sibling index, or with its key
// when one is set. The NodeID is derived from that path, so unkeyed
// siblings are identified by position and keyed siblings keep their
// identity across reorders.
//
// Example:
//
//	type Counter struct{}
//
//	func (Counter) Body(ctx *view.Context) view.View {
//	    count := view.UseState(ctx, 0)
//	    return view.Element{
//	        Tag: "Button",
//	        Children: []view.View{view.Text{Content: fmt.Sprint(count.Get())}},
//	        On: map[string]func(){
//	            "click": func() { count.Update(func(n int) int { return n + 1 }) },
//	        },
//	    }
//	}
package view

import (
	"reflect"

	"github.com/go-raven/raven/pkg/vnode"
)

// View is any of Element, Text, Component, Group or nil.
type View any

// Element is a primitive node.
type Element struct {
	Tag      string
	Key      string
	Props    vnode.Props
	Children []View

	// On binds action handlers by event name.
	On map[string]func()
	// OnInput binds handlers that receive a value, such as text entry.
	OnInput map[string]func(value string)
}

// Text is a text leaf.
type Text struct {
	Content string
	Key     string
}

// Component is a user-defined view. Body is called on every render pass and
// must only read state; writes belong in handlers.
type Component interface {
	Body(ctx *Context) View
}

// Group is a fragment: its members become siblings in the enclosing
// children list.
type Group []View

// Named is implemented by components that choose their own type token
// instead of their Go type name.
type Named interface {
	ViewName() string
}

// Keyed is implemented by components that carry an explicit key.
type Keyed interface {
	ViewKey() string
}

type funcComponent struct {
	name string
	fn   func(ctx *Context) View
}

func (f funcComponent) Body(ctx *Context) View { return f.fn(ctx) }
func (f funcComponent) ViewName() string      { return f.name }

// Func adapts fn into a Component named name.
func Func(name string, fn func(ctx *Context) View) Component {
	return funcComponent{name: name, fn: fn}
}

type keyedComponent struct {
	Component
	key string
}

func (k keyedComponent) ViewKey() string  { return k.key }
func (k keyedComponent) ViewName() string { return componentName(k.Component) }

// WithKey returns v carrying key. Groups, nil and nil pointers are
// returned unchanged.
func WithKey(v View, key string) View {
	switch v := v.(type) {
	case Element:
		v.Key = key
		return v
	case *Element:
		if v == nil {
			return v
		}
		cp := *v
		cp.Key = key
		return cp
	case Text:
		v.Key = key
		return v
	case *Text:
		if v == nil {
			return v
		}
		cp := *v
		cp.Key = key
		return cp
	case keyedComponent:
		v.key = key
		return v
	case Component:
		return keyedComponent{Component: v, key: key}
	}
	return v
}

// ForEach renders one keyed view per item.
//
//	view.ForEach(todos, func(t Todo) string { return t.ID },
//	    func(t Todo) view.View { return TodoRow{Todo: t} })
func ForEach[T any](items []T, key func(T) string, render func(T) View) Group {
	out := make(Group, 0, len(items))
	for _, item := range items {
		out = append(out, WithKey(render(item), key(item)))
	}
	return out
}

func componentName(c Component) string {
	if n, ok := c.(Named); ok {
		return n.ViewName()
	}
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Component"
	}
	return t.Name()
}

func componentType(c Component) string {
	if k, ok := c.(keyedComponent); ok {
		return componentType(k.Component)
	}
	return reflect.TypeOf(c).String()
}
