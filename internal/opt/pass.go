package opt

import (
	"github.com/tliron/commonlog"

	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

var log = commonlog.GetLogger("sable.opt")

// Pass is a single optimization transformation.
type Pass interface {
	Name() string
	Description() string
}

// Source identifies the function a body belongs to.
type Source struct {
	Def types.DefID
}

// BodyPass transforms one body at a time. RunOnBody returns true if changes
// were made.
type BodyPass interface {
	Pass
	RunOnBody(ctx *session.Context, src Source, body *mir.Body) bool
}

// MapPass transforms the whole body map at once; interprocedural passes
// such as inlining need the entire crate in view.
type MapPass interface {
	Pass
	RunPass(ctx *session.Context, bodies map[types.DefID]*mir.Body, hooks []Hook)
}

// Hook observes each function before and after a map pass runs.
type Hook interface {
	OnPass(ctx *session.Context, src Source, body *mir.Body, pass Pass, after bool)
}

// Pipeline manages the sequence of optimization passes.
type Pipeline struct {
	passes []MapPass
}

// NewPipeline creates a pipeline with the default passes.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	p.AddPass(&Inline{})
	return p
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass MapPass) {
	p.passes = append(p.passes, pass)
}

// Run executes all passes over the body map.
func (p *Pipeline) Run(ctx *session.Context, bodies map[types.DefID]*mir.Body, hooks []Hook) {
	for _, pass := range p.passes {
		log.Debugf("running %s: %s", pass.Name(), pass.Description())
		pass.RunPass(ctx, bodies, hooks)
	}
}
