package opt

import (
	"sable/internal/mir"
)

// CFG cleanup run after inlining: collapse chains of empty goto blocks,
// merge blocks into their single predecessor, and drop everything the entry
// block no longer reaches.

// CfgSimplifier rewrites one body's control flow into a smaller equivalent.
type CfgSimplifier struct {
	body *mir.Body
}

// NewCfgSimplifier creates a simplifier for body.
func NewCfgSimplifier(body *mir.Body) *CfgSimplifier {
	return &CfgSimplifier{body: body}
}

// Simplify runs to a fixpoint. Unreachable blocks are left in place;
// RemoveDeadBlocks compacts them away.
func (s *CfgSimplifier) Simplify() {
	for {
		changed := s.collapseGotoChains()
		if s.mergeSinglePredecessors() {
			changed = true
		}
		if !changed {
			return
		}
	}
}

// collapseGotoChains retargets every edge that points at an empty
// goto-only block to that block's eventual destination.
func (s *CfgSimplifier) collapseGotoChains() bool {
	changed := false
	for bb := range s.body.Blocks {
		term := s.body.Blocks[bb].Terminator
		if term == nil {
			continue
		}
		mir.MapSuccessors(term.Kind, func(target mir.BlockID) mir.BlockID {
			final := s.finalTarget(target)
			if final != target {
				changed = true
			}
			return final
		})
	}
	return changed
}

// finalTarget follows empty goto blocks until a block with content or a
// goto cycle is reached.
func (s *CfgSimplifier) finalTarget(start mir.BlockID) mir.BlockID {
	seen := map[mir.BlockID]bool{}
	current := start
	for {
		block := s.body.Block(current)
		if len(block.Statements) > 0 || block.Terminator == nil {
			return current
		}
		goto_, ok := block.Terminator.Kind.(*mir.GotoTerm)
		if !ok || seen[current] {
			return current
		}
		seen[current] = true
		current = goto_.Target
	}
}

// mergeSinglePredecessors splices a block into its predecessor when that
// predecessor is the block's only entry and falls through with a goto.
func (s *CfgSimplifier) mergeSinglePredecessors() bool {
	preds := s.predecessorCounts()
	changed := false
	for bb := range s.body.Blocks {
		block := &s.body.Blocks[bb]
		if block.Terminator == nil {
			continue
		}
		// Unreachable blocks are not counted as predecessors, so they must
		// not absorb a successor either.
		if mir.BlockID(bb) != mir.StartBlock && preds[bb] == 0 {
			continue
		}
		goto_, ok := block.Terminator.Kind.(*mir.GotoTerm)
		if !ok {
			continue
		}
		target := goto_.Target
		if int(target) == bb || target == mir.StartBlock || preds[target] != 1 {
			continue
		}
		next := s.body.Block(target)
		if next.IsCleanup != block.IsCleanup {
			continue
		}
		block.Statements = append(block.Statements, next.Statements...)
		block.Terminator = next.Terminator
		next.Statements = nil
		next.Terminator = &mir.Terminator{Kind: &mir.UnreachableTerm{}}
		changed = true
	}
	return changed
}

// predecessorCounts counts edges from reachable blocks only, so a block
// whose other predecessors are already dead can still be merged.
func (s *CfgSimplifier) predecessorCounts() []int {
	preds := make([]int, len(s.body.Blocks))
	reachable := make([]bool, len(s.body.Blocks))
	worklist := []mir.BlockID{mir.StartBlock}
	reachable[mir.StartBlock] = true
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		term := s.body.Block(bb).Terminator
		if term == nil {
			continue
		}
		for _, succ := range term.Kind.Successors() {
			preds[succ]++
			if !reachable[succ] {
				reachable[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
	return preds
}

// RemoveDeadBlocks drops every block the entry block cannot reach and
// renumbers the rest densely. The entry block stays at index 0.
func RemoveDeadBlocks(body *mir.Body) {
	if len(body.Blocks) == 0 {
		return
	}
	reachable := make([]bool, len(body.Blocks))
	worklist := []mir.BlockID{mir.StartBlock}
	reachable[mir.StartBlock] = true
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		term := body.Block(bb).Terminator
		if term == nil {
			continue
		}
		for _, succ := range term.Kind.Successors() {
			if !reachable[succ] {
				reachable[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}

	replacement := make([]mir.BlockID, len(body.Blocks))
	kept := body.Blocks[:0]
	for bb := range body.Blocks {
		if reachable[bb] {
			replacement[bb] = mir.BlockID(len(kept))
			kept = append(kept, body.Blocks[bb])
		}
	}
	body.Blocks = kept

	for bb := range body.Blocks {
		term := body.Blocks[bb].Terminator
		if term == nil {
			continue
		}
		mir.MapSuccessors(term.Kind, func(target mir.BlockID) mir.BlockID {
			return replacement[target]
		})
	}
}
