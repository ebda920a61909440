package coarsen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/merger"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/selector"
)

// step is one parsed (selector-name, fraction) pair of a coarsening plan.
type step struct {
	name     string
	fraction float64
}

// Builder parses a coarsening plan string of the form
// `STEP (WS STEP)*` (`STEP := NAME ":" FRACTION ("," FRACTION)*`,
// optional surrounding brackets tolerated around the fraction list) and
// queues one NeighborCoarsener per (name, fraction) pair.
type Builder struct {
	steps []step
}

// Parse parses plan, validating that fractions are strictly increasing
// across the whole flattened sequence (within a step and across steps).
// Any violation aborts with an error and leaves the builder's queue
// empty.
func Parse(plan string) (*Builder, error) {
	b := &Builder{}
	fields := strings.Fields(plan)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty coarsening plan", ErrInvalidArgument)
	}

	last := 0.0
	for _, field := range fields {
		name, fracPart, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed step %q: missing ':'", ErrInvalidArgument, field)
		}
		if !validSelectorName(name) {
			return nil, fmt.Errorf("%w: unknown selector name %q", ErrInvalidArgument, name)
		}
		fracPart = strings.TrimPrefix(fracPart, "[")
		fracPart = strings.TrimSuffix(fracPart, "]")
		fracPart = strings.TrimPrefix(fracPart, "(")
		fracPart = strings.TrimSuffix(fracPart, ")")

		for _, fracStr := range strings.Split(fracPart, ",") {
			fracStr = strings.TrimSpace(fracStr)
			if fracStr == "" {
				return nil, fmt.Errorf("%w: empty fraction in step %q", ErrInvalidArgument, field)
			}
			frac, err := strconv.ParseFloat(fracStr, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid fraction %q: %v", ErrInvalidArgument, fracStr, err)
			}
			if frac <= 0 || frac > 1 {
				return nil, fmt.Errorf("%w: fraction %v out of range (0,1]", ErrInvalidArgument, frac)
			}
			if frac <= last {
				return nil, fmt.Errorf("%w: fractions must be strictly increasing (got %v after %v)", ErrInvalidArgument, frac, last)
			}
			last = frac
			b.steps = append(b.steps, step{name: name, fraction: frac})
		}
	}
	return b, nil
}

func validSelectorName(name string) bool {
	switch name {
	case "Hs", "Hm", "Xs", "Xm":
		return true
	default:
		return false
	}
}

// Run dequeues and executes steps FIFO against dao, building a fresh
// NeighborCoarsener for each. Any failure clears the remaining queue and
// surfaces the error.
func (b *Builder) Run(dao *mlgdao.MLGDao) ([]entity.ID, error) {
	var results []entity.ID
	for len(b.steps) > 0 {
		st := b.steps[0]
		b.steps = b.steps[1:]

		c, err := b.buildCoarsener(dao, st)
		if err != nil {
			b.steps = nil
			return nil, err
		}
		top, err := c.Run()
		if err != nil {
			b.steps = nil
			return nil, err
		}
		results = append(results, top)
	}
	return results, nil
}

func (b *Builder) buildCoarsener(dao *mlgdao.MLGDao, st step) (*NeighborCoarsener, error) {
	var sel selector.Selector
	switch st.name {
	case "Hs":
		sel = selector.NewHeavyHLink(dao.Links().Session())
	case "Hm":
		s := selector.NewHeavyHLink(dao.Links().Session())
		s.MemoryMode = true
		sel = s
	case "Xs":
		sel = selector.NewX(dao.Links().Session())
	case "Xm":
		s := selector.NewX(dao.Links().Session())
		s.MemoryMode = true
		sel = s
	default:
		return nil, fmt.Errorf("%w: unknown selector name %q", ErrInvalidArgument, st.name)
	}
	m := merger.New(dao, mlgdao.AddMerger)
	return New(dao, sel, m, st.fraction)
}

// Remaining reports how many steps are still queued.
func (b *Builder) Remaining() int { return len(b.steps) }

// StepDesc names and fraction of one queued step, exposed for inspection.
type StepDesc struct {
	Name     string
	Fraction float64
}

// Steps returns the queued steps in FIFO order without consuming them.
func (b *Builder) Steps() []StepDesc {
	out := make([]StepDesc, len(b.steps))
	for i, s := range b.steps {
		out[i] = StepDesc{Name: s.name, Fraction: s.fraction}
	}
	return out
}
