package session

import (
	"sable/internal/mir"
	"sable/internal/types"
)

// Context is the per-compilation handle the optimizer passes share: item
// attributes, lang items, the source map, the target layout, the
// cross-crate IR store and the dependency graph.
type Context struct {
	Options   Options
	Layout    types.TargetLayout
	SourceMap *SourceMap
	LangItems LangItems
	DepGraph  *DepGraph

	// Foreign supplies bodies for items defined in other crates. May be
	// nil when compiling without upstream IR.
	Foreign ForeignStore

	attrs   map[types.DefID]FnAttrs
	traits  map[types.DefID]bool
	statics map[types.DefID]types.Type
	names   map[types.DefID]string
}

// Options are the optimizer's control knobs.
type Options struct {
	// MIROptLevel gates the more aggressive passes; inlining runs at
	// level 2 and above.
	MIROptLevel int
}

// LangItems registers the handful of compiler-known functions the
// optimizer treats specially.
type LangItems struct {
	// BoxFree is the box-deallocation function, when the crate graph
	// defines one.
	BoxFree *types.DefID
}

// NewContext creates a context with an empty source map and a 64-bit
// target.
func NewContext(opts Options) *Context {
	return &Context{
		Options:   opts,
		Layout:    types.TargetLayout{PointerSize: 8},
		SourceMap: NewSourceMap(0),
		DepGraph:  NewDepGraph(),
		attrs:     make(map[types.DefID]FnAttrs),
		traits:    make(map[types.DefID]bool),
		statics:   make(map[types.DefID]types.Type),
		names:     make(map[types.DefID]string),
	}
}

// SetAttrs records the attributes of an item.
func (c *Context) SetAttrs(def types.DefID, attrs FnAttrs) {
	c.attrs[def] = attrs
}

// Attrs returns the attributes of an item; items with no recorded
// attributes have none.
func (c *Context) Attrs(def types.DefID) FnAttrs {
	return c.attrs[def]
}

// MarkTraitMethod records that def is an unresolved trait method.
func (c *Context) MarkTraitMethod(def types.DefID) {
	c.traits[def] = true
}

// IsTraitMethod reports whether def is a trait method rather than a
// statically-resolved function.
func (c *Context) IsTraitMethod(def types.DefID) bool {
	return c.traits[def]
}

// DefineStatic records the type of a global.
func (c *Context) DefineStatic(def types.DefID, ty types.Type) {
	c.statics[def] = ty
}

// StaticTy answers mir.StaticResolver for this context.
func (c *Context) StaticTy(def types.DefID) types.Type {
	if ty, ok := c.statics[def]; ok {
		return ty
	}
	return types.Unit()
}

// SetName records the display name of an item.
func (c *Context) SetName(def types.DefID, name string) {
	c.names[def] = name
}

// Name returns the display name of an item, falling back to the def id.
func (c *Context) Name(def types.DefID) string {
	if name, ok := c.names[def]; ok {
		return name
	}
	return def.String()
}

// ForeignBody asks the cross-crate store for the body of def; nil when the
// upstream crate did not ship it.
func (c *Context) ForeignBody(def types.DefID) *mir.Body {
	if c.Foreign == nil {
		return nil
	}
	return c.Foreign.ItemBody(def)
}

// ForeignStore is the cross-crate IR accessor.
type ForeignStore interface {
	// ItemBody returns the body of an item defined in another crate, or
	// nil when it was not shipped.
	ItemBody(def types.DefID) *mir.Body
}

// InlineAttr is the inline directive attached to a function.
type InlineAttr int

const (
	InlineNone InlineAttr = iota
	InlineHint
	InlineAlways
	InlineNever
)

func (a InlineAttr) String() string {
	switch a {
	case InlineHint:
		return "inline"
	case InlineAlways:
		return "inline(always)"
	case InlineNever:
		return "inline(never)"
	default:
		return "none"
	}
}

// FnAttrs are the function attributes the optimizer consults.
type FnAttrs struct {
	Inline InlineAttr
	Cold   bool
}
