package rewrite

import (
	"fmt"

	"github.com/modguard/modguard/internal/errors"
)

// Rewriter is a stateful editor over one method body. It advances
// instruction-by-instruction, letting a caller (internal/loader's
// per-opcode dispatch) insert synthetic guard sequences ahead of
// original instructions without disturbing branch targets or exception
// handler spans. See spec §3 ("Rewrite state") and §4.E.
type Rewriter struct {
	original []*Instr
	handlers []ExceptionHandler

	output    []*Instr
	offsetMap map[int]*Instr

	// copyCursor is the index into original of the next original
	// instruction awaiting emission.
	copyCursor int
	// advanceCursor is the index into original of the instruction
	// currently under consideration.
	advanceCursor int

	// pendingSynthFirst is the first synthetic instruction inserted
	// since the last Advance call, or nil if none has been inserted yet
	// this step.
	pendingSynthFirst *Instr
}

// Start resets the rewriter for a new method body: it sizes internal
// buffers to the method, and advances the cursor to the first
// non-prefix instruction.
func (r *Rewriter) Start(body MethodBody) {
	r.original = make([]*Instr, len(body.Instrs))
	for i := range body.Instrs {
		cp := body.Instrs[i]
		r.original[i] = &cp
	}
	r.handlers = body.Handlers
	r.output = r.output[:0]
	r.offsetMap = make(map[int]*Instr, len(body.Instrs))
	r.copyCursor = 0
	r.pendingSynthFirst = nil

	r.advanceCursor = 0
	r.skipPrefixes()
}

func (r *Rewriter) skipPrefixes() {
	for r.advanceCursor < len(r.original) && r.original[r.advanceCursor].Op.IsPrefix() {
		r.advanceCursor++
	}
}

// Current returns the instruction the advance cursor currently points
// at, and false if the rewriter has walked past the end of the body.
func (r *Rewriter) Current() (Instr, bool) {
	if r.advanceCursor >= len(r.original) {
		return Instr{}, false
	}
	return *r.original[r.advanceCursor], true
}

// Peek looks at the instruction immediately preceding the advance
// cursor in original order (used to detect a constrained. prefix
// immediately before a callvirt, per spec §4.G(ii)).
func (r *Rewriter) Peek(offsetBack int) (Instr, bool) {
	idx := r.advanceCursor - offsetBack
	if idx < 0 || idx >= len(r.original) {
		return Instr{}, false
	}
	return *r.original[idx], true
}

// PeekForward looks ahead of the advance cursor in original order (used
// by internal/stackalloc to match the localloc; <load length>; newobj
// Span<T> triple before consuming any of it).
func (r *Rewriter) PeekForward(offsetAhead int) (Instr, bool) {
	idx := r.advanceCursor + offsetAhead
	if idx < 0 || idx >= len(r.original) {
		return Instr{}, false
	}
	return *r.original[idx], true
}

// Insert appends a synthetic instruction to the output buffer, tagging
// it with the sentinel offset so it is never mistaken for an original
// branch target.
func (r *Rewriter) Insert(op Opcode, operand any) *Instr {
	instr := &Instr{Offset: sentinelOffset, Op: op, Operand: operand}
	r.output = append(r.output, instr)
	if r.pendingSynthFirst == nil {
		r.pendingSynthFirst = instr
	}
	return instr
}

// Advance closes out the current step.
//
// If addOriginal is true, the original instruction(s) from the copy
// cursor up to (and including) the advance cursor are appended to the
// output buffer, with any short or indexed-macro form expanded to its
// long form, and returned to the caller in copy order. The offset-map
// entry recorded for the head of this range follows spec §4.E exactly:
// if synthetic instructions were inserted since the last Advance call,
// the head maps to the first of them; otherwise it maps to the freshly
// copied original instruction.
//
// The returned instructions let a caller backpatch a synthetic branch
// it just inserted (e.g. a guard's own "fall through to the original"
// target) with TargetSynthetic(copied[0]) -- that is a different target
// than what the offset map now resolves external branches to, which is
// deliberate: an external branch that targeted this original instruction
// must re-enter at the guard, while the guard's own internal fallthrough
// must bypass the guard it just emitted.
//
// The advance cursor then moves to the next non-prefix instruction;
// prefix opcodes are included in the copy window but never themselves
// become the advance cursor's target.
func (r *Rewriter) Advance(addOriginal bool) []*Instr {
	var copied []*Instr
	if addOriginal && r.advanceCursor < len(r.original) {
		end := r.advanceCursor
		for i := r.copyCursor; i <= end; i++ {
			orig := r.original[i]
			expanded := expandMacro(orig)
			r.output = append(r.output, expanded)
			copied = append(copied, expanded)

			var target *Instr
			if i == r.copyCursor && r.pendingSynthFirst != nil {
				target = r.pendingSynthFirst
			} else {
				target = expanded
			}
			r.offsetMap[orig.Offset] = target
		}
		r.copyCursor = end + 1
	}

	r.pendingSynthFirst = nil
	r.advanceCursor++
	r.skipPrefixes()
	return copied
}

// Drop consumes the current original instruction without copying it to
// the output buffer -- used when a multi-instruction original sequence
// (e.g. ldftn followed by newobj <DelegateCtor>) is replaced wholesale by
// a synthetic call rather than left to fall through. If synthetic
// instructions were inserted since the last Advance/Drop, the dropped
// instruction's offset still maps to the first of them (an external
// branch into the middle of a replaced sequence re-enters at the
// replacement); otherwise the offset is left unmapped, and any branch
// that did target it is reported as dangling by Finish.
func (r *Rewriter) Drop() {
	if r.advanceCursor < len(r.original) {
		end := r.advanceCursor
		for i := r.copyCursor; i <= end; i++ {
			if i == r.copyCursor && r.pendingSynthFirst != nil {
				r.offsetMap[r.original[i].Offset] = r.pendingSynthFirst
			}
		}
		r.copyCursor = end + 1
	}
	r.pendingSynthFirst = nil
	r.advanceCursor++
	r.skipPrefixes()
}

// expandMacro returns the long-form equivalent of a short or indexed
// macro instruction, or orig unchanged if it is already a long form.
func expandMacro(orig *Instr) *Instr {
	if longOp, idx, ok := orig.Op.indexedMacroIndex(); ok {
		return &Instr{Offset: orig.Offset, Op: longOp, Operand: idx}
	}
	if orig.Op.IsShortForm() {
		return &Instr{Offset: orig.Offset, Op: orig.Op.LongForm(), Operand: orig.Operand}
	}
	return orig
}

// Finish flushes any remaining untouched original instructions, then
// remaps every branch operand and every exception-handler offset field:
// a sentinel target is kept as-is, anything else is looked up in the
// offset map. It returns RWR001 if any non-sentinel target has no
// offset-map entry -- the sole correctness requirement for branch
// remapping (spec §3, §8).
func (r *Rewriter) Finish() (MethodBody, error) {
	for r.copyCursor < len(r.original) {
		r.Advance(true)
	}

	indexOf := make(map[*Instr]int, len(r.output))
	for i, instr := range r.output {
		indexOf[instr] = i
	}

	for _, instr := range r.output {
		bt, ok := instr.Operand.(BranchTarget)
		if !ok {
			continue
		}
		target, err := r.resolveTarget(bt)
		if err != nil {
			return MethodBody{}, err
		}
		instr.Operand = ResolvedBranch{Index: indexOf[target]}
	}

	var newHandlers []ExceptionHandler
	if r.handlers != nil {
		newHandlers = make([]ExceptionHandler, len(r.handlers))
	}
	for i, h := range r.handlers {
		nh, err := r.remapHandler(h, indexOf)
		if err != nil {
			return MethodBody{}, err
		}
		newHandlers[i] = nh
	}

	finalInstrs := make([]Instr, len(r.output))
	for i, instr := range r.output {
		finalInstrs[i] = *instr
	}

	return MethodBody{Instrs: finalInstrs, Handlers: newHandlers}, nil
}

func (r *Rewriter) resolveTarget(bt BranchTarget) (*Instr, error) {
	if bt.synthetic != nil {
		return bt.synthetic, nil
	}
	target, ok := r.offsetMap[bt.offset]
	if !ok {
		return nil, danglingBranchError(bt.offset)
	}
	return target, nil
}

func (r *Rewriter) remapHandler(h ExceptionHandler, indexOf map[*Instr]int) (ExceptionHandler, error) {
	remap := func(offset int) (int, error) {
		target, ok := r.offsetMap[offset]
		if !ok {
			return 0, danglingBranchError(offset)
		}
		return indexOf[target], nil
	}

	var err error
	out := h
	if out.TryStart, err = remap(h.TryStart); err != nil {
		return ExceptionHandler{}, err
	}
	if out.TryEnd, err = remap(h.TryEnd); err != nil {
		return ExceptionHandler{}, err
	}
	if h.FilterStart >= 0 {
		if out.FilterStart, err = remap(h.FilterStart); err != nil {
			return ExceptionHandler{}, err
		}
	}
	if out.HandlerStart, err = remap(h.HandlerStart); err != nil {
		return ExceptionHandler{}, err
	}
	if out.HandlerEnd, err = remap(h.HandlerEnd); err != nil {
		return ExceptionHandler{}, err
	}
	return out, nil
}

func danglingBranchError(offset int) error {
	return errors.New("rewrite", errors.RWR001,
		fmt.Sprintf("branch or exception-handler target at offset %d has no replacement instruction", offset),
		map[string]any{"offset": offset})
}
