package opt

import (
	"sort"

	"sable/internal/callgraph"
	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

// Inlining pass for MIR functions.
//
// Callsites are collected per strongly-connected component of the call
// graph, outside-SCC calls first, so recursive groups expand a bounded
// number of times. Each accepted callsite has its callee's CFG spliced into
// the caller by the Integrator.

const (
	defaultThreshold = 50
	hintThreshold    = 100

	instrCost   = 5
	callPenalty = 25

	unknownSizeCost = 10
)

// Inline is the interprocedural inlining pass.
type Inline struct{}

func (*Inline) Name() string { return "Inline" }

func (*Inline) Description() string {
	return "Replaces small statically-dispatched calls with the callee's body"
}

// RunPass inlines across the whole local crate. Active at mir-opt-level 2
// and above.
func (p *Inline) RunPass(ctx *session.Context, bodies map[types.DefID]*mir.Body, hooks []Hook) {
	if ctx.Options.MIROptLevel < 2 {
		return
	}

	closeIgnore := ctx.DepGraph.InIgnore()
	graph := callgraph.Build(bodies)
	closeIgnore()

	inliner := &Inliner{
		ctx:           ctx,
		foreignBodies: make(map[types.DefID]*mir.Body),
	}

	defs := sortedDefs(bodies)
	for _, def := range defs {
		closeTask := ctx.DepGraph.InTask(def)
		for _, hook := range hooks {
			hook.OnPass(ctx, Source{Def: def}, bodies[def], p, false)
		}
		closeTask()
	}

	for _, scc := range graph.SCCIter() {
		inliner.inlineSCC(bodies, graph, scc)
	}

	for _, def := range defs {
		closeTask := ctx.DepGraph.InTask(def)
		for _, hook := range hooks {
			hook.OnPass(ctx, Source{Def: def}, bodies[def], p, true)
		}
		closeTask()
	}
}

func sortedDefs(bodies map[types.DefID]*mir.Body) []types.DefID {
	defs := make([]types.DefID, 0, len(bodies))
	for def := range bodies {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Crate != defs[j].Crate {
			return defs[i].Crate < defs[j].Crate
		}
		return defs[i].Index < defs[j].Index
	})
	return defs
}

// Inliner drives inlining for one pass invocation and caches foreign
// bodies for its duration.
type Inliner struct {
	ctx           *session.Context
	foreignBodies map[types.DefID]*mir.Body
}

// CallSite is one direct call found in a caller's CFG.
type CallSite struct {
	Caller   types.DefID
	Callee   types.DefID
	Substs   types.GenericArgs
	BB       mir.BlockID
	Location mir.SourceInfo
}

// inlineSCC runs the inlining fixpoint over one strongly-connected
// component of the call graph.
func (inl *Inliner) inlineSCC(bodies map[types.DefID]*mir.Body, graph *callgraph.CallGraph, scc []callgraph.NodeIndex) bool {
	var callsites []CallSite
	inSCC := make(map[types.DefID]bool)
	inlinedInto := make(map[types.DefID]bool)

	for _, node := range scc {
		def := graph.DefID(node)

		// Don't inspect functions from other crates.
		if !def.IsLocal() {
			continue
		}
		body, ok := bodies[def]
		if !ok {
			continue
		}
		for bb := range body.Blocks {
			block := &body.Blocks[bb]
			// Don't inline calls that are in cleanup blocks.
			if block.IsCleanup || block.Terminator == nil {
				continue
			}
			// Only consider direct calls to functions.
			callee, substs, ok := mir.DirectCallee(block.Terminator.Kind)
			if !ok {
				continue
			}
			callsites = append(callsites, CallSite{
				Caller:   def,
				Callee:   callee,
				Substs:   substs,
				BB:       mir.BlockID(bb),
				Location: block.Terminator.SourceInfo,
			})
		}
		inSCC[def] = true
	}

	// Move callsites whose caller is in the SCC to the end so they're
	// inlined after calls to outside the SCC.
	firstCallInSCC := len(callsites)
	for i := 0; i < firstCallInSCC; {
		if inSCC[callsites[i].Caller] {
			firstCallInSCC--
			callsites[i], callsites[firstCallInSCC] = callsites[firstCallInSCC], callsites[i]
		} else {
			i++
		}
	}

	changed := false
	for {
		localChange := false
		csi := 0
		for csi < len(callsites) {
			cs := callsites[csi]
			csi++

			var calleeBody *mir.Body
			if cs.Callee.IsLocal() {
				calleeBody = bodies[cs.Callee]
			} else {
				calleeBody = inl.getForeignBody(cs.Callee)
			}
			if calleeBody == nil {
				continue
			}

			if !inl.shouldInline(cs, calleeBody) {
				continue
			}

			specialized := mir.Subst(calleeBody, cs.Substs)
			callerBody := bodies[cs.Caller]
			start := len(callerBody.Blocks)

			if !inl.inlineCall(cs, callerBody, specialized) {
				continue
			}
			inlinedInto[cs.Caller] = true

			// Add callsites from the inlined body.
			for bb := start; bb < len(callerBody.Blocks); bb++ {
				term := callerBody.Blocks[bb].Terminator
				if term == nil {
					continue
				}
				callee, substs, ok := mir.DirectCallee(term.Kind)
				if !ok {
					continue
				}
				// Don't inline the same function multiple times.
				if callee == cs.Callee {
					continue
				}
				callsites = append(callsites, CallSite{
					Caller:   cs.Caller,
					Callee:   callee,
					Substs:   substs,
					BB:       mir.BlockID(bb),
					Location: term.SourceInfo,
				})
			}

			csi--
			if len(scc) == 1 {
				callsites[csi] = callsites[len(callsites)-1]
				callsites = callsites[:len(callsites)-1]
			} else {
				callsites = append(callsites[:csi], callsites[csi+1:]...)
			}

			localChange = true
			changed = true
		}
		if !localChange {
			break
		}
	}

	// Simplify functions we inlined into.
	modified := make([]types.DefID, 0, len(inlinedInto))
	for def := range inlinedInto {
		modified = append(modified, def)
	}
	sort.Slice(modified, func(i, j int) bool { return modified[i].Index < modified[j].Index })
	for _, def := range modified {
		log.Debugf("running simplify cfg on %s", inl.ctx.Name(def))
		body := bodies[def]
		NewCfgSimplifier(body).Simplify()
		RemoveDeadBlocks(body)
	}
	return changed
}

// getForeignBody returns the cached body of a cross-crate callee,
// requesting and caching it on first use. Bodies that were not shipped stay
// absent.
func (inl *Inliner) getForeignBody(def types.DefID) *mir.Body {
	if body, ok := inl.foreignBodies[def]; ok {
		return body
	}
	body := inl.ctx.ForeignBody(def)
	if body != nil {
		inl.foreignBodies[def] = body
	}
	return body
}

// shouldInline is the admission policy: a callee is inlined when its
// estimated post-specialization size fits under the threshold its
// attributes select. It never mutates IR.
func (inl *Inliner) shouldInline(cs CallSite, calleeBody *mir.Body) bool {
	ctx := inl.ctx

	// Don't inline closures that have captures.
	if len(calleeBody.UpvarDecls) > 0 {
		return false
	}

	// Don't inline calls to trait methods.
	if ctx.IsTraitMethod(cs.Callee) {
		return false
	}

	attrs := ctx.Attrs(cs.Callee)
	var hinted bool
	switch attrs.Inline {
	case session.InlineAlways:
		// Treat inline(always) as a hint for now; the gates above and
		// below still apply.
		hinted = true
	case session.InlineNever:
		return false
	case session.InlineHint:
		hinted = true
	}

	// Only inline local functions if they would be eligible for
	// cross-crate inlining: a local callee with no type substitutions and
	// no hint keeps its out-of-line symbol.
	if cs.Callee.IsLocal() && !cs.Substs.HasTypes() && !hinted {
		return false
	}

	threshold := defaultThreshold
	if hinted {
		threshold = hintThreshold
	}

	// Significantly lower the threshold for inlining cold functions.
	if attrs.Cold {
		threshold /= 5
	}

	// Give a bonus to functions with a small number of blocks; even very
	// small functions normally have two or three.
	if len(calleeBody.Blocks) <= 3 {
		threshold += threshold / 4
	}

	paramEnv := types.ParamEnv{Item: cs.Caller}

	firstBlock := true
	cost := 0

	// Traverse the callee manually so the scoring accounts for the effect
	// inlining has on the CFG: only reachable blocks count, and drops of
	// types that need no destructor score as plain gotos.
	worklist := []mir.BlockID{mir.StartBlock}
	visited := make([]bool, len(calleeBody.Blocks))
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[bb] {
			continue
		}
		visited[bb] = true
		block := calleeBody.Block(bb)

		for i := range block.Statements {
			// StorageLive/StorageDead don't count toward the cost.
			switch block.Statements[i].Kind.(type) {
			case *mir.StorageLiveStmt, *mir.StorageDeadStmt, *mir.NopStmt:
			default:
				cost += instrCost
			}
		}

		term := block.Terminator
		isDrop := false
		switch kind := term.Kind.(type) {
		case *mir.DropTerm, *mir.DropAndReplaceTerm:
			isDrop = true
			var location mir.Lvalue
			var target mir.BlockID
			var unwind *mir.BlockID
			if drop, ok := kind.(*mir.DropTerm); ok {
				location, target, unwind = drop.Location, drop.Target, drop.Unwind
			} else {
				rep := kind.(*mir.DropAndReplaceTerm)
				location, target, unwind = rep.Location, rep.Target, rep.Unwind
			}
			worklist = append(worklist, target)
			// If the location doesn't actually need dropping, treat the
			// terminator like a regular goto.
			ty := types.Subst(mir.LvalueTy(calleeBody, ctx.StaticTy, location), cs.Substs)
			if types.NeedsDrop(paramEnv, ty) {
				cost += callPenalty
				if unwind != nil {
					worklist = append(worklist, *unwind)
				}
			} else {
				cost += instrCost
			}

		case *mir.UnreachableTerm:
			if firstBlock {
				// The function always diverges; don't inline unless the
				// cost is zero.
				threshold = 0
			} else {
				cost += instrCost
			}

		case *mir.CallTerm:
			if firstBlock && kind.Destination == nil {
				threshold = 0
				break
			}
			if konst, ok := kind.Func.(*mir.ConstantOperand); ok {
				if fnty, ok := konst.Constant.Ty.(*types.FnDefType); ok {
					// Don't give intrinsics the extra penalty for calls.
					if fnty.Abi.IsIntrinsic() {
						cost += instrCost
					} else {
						cost += callPenalty
					}
				}
			} else {
				cost += instrCost
			}

		case *mir.AssertTerm:
			cost += callPenalty

		default:
			cost += instrCost
		}

		if !isDrop {
			worklist = append(worklist, term.Kind.Successors()...)
		}
		firstBlock = false
	}

	// Count up the cost of local variables and temps: size in machine
	// words when known, a moderately-large dummy cost otherwise.
	ptrSize := ctx.Layout.PointerSize
	localCost := func(ty types.Type) {
		ty = types.Subst(ty, cs.Substs)
		if size, ok := types.SizeOf(ctx.Layout, paramEnv, ty); ok {
			cost += int(size / ptrSize)
		} else {
			cost += unknownSizeCost
		}
	}
	for _, v := range calleeBody.VarDecls {
		localCost(v.Ty)
	}
	for _, t := range calleeBody.TempDecls {
		localCost(t.Ty)
	}

	log.Debugf("inline cost for %s is %d", ctx.Name(cs.Callee), cost)

	if attrs.Inline == session.InlineAlways {
		return true
	}
	return cost <= threshold
}
