// Package tvfilter implements the time-vertex filter: a
// weighted blend of a node's own observation across nearby layers and
// its base-topology neighbors' observations, decaying with CLink
// resistivity distance.
package tvfilter

import (
	"log"

	"github.com/orneryd/mlgraph/pkg/entity"
	"github.com/orneryd/mlgraph/pkg/mlgdao"
	"github.com/orneryd/mlgraph/pkg/store"
	"github.com/orneryd/mlgraph/pkg/tscache"
)

// Coeff is one term of a layer's temporal window coefficients: the
// layer reached at the given offset from the computation layer, its
// accumulated resistivity lambda, and the signed offset itself (used to
// index a cache's sliding window).
type Coeff struct {
	Layer  entity.ID
	Lambda float64
	Offset int
}

// Filter computes new OLink observations by blending a node's signal
// across a radius of layers (time term) with its HLink neighbors' same
// signal (vertex term).
type Filter struct {
	dao   *mlgdao.MLGDao
	cache *tscache.Cache

	Radius    int
	Direction mlgdao.Direction
	TimeOnly  bool

	// LambdaOverride, if set, replaces every per-CLink 1/w(CLink) term
	// with this constant.
	LambdaOverride *float64

	// Excluded lists node ids to skip when walking HLink neighbors.
	Excluded map[entity.ID]struct{}
}

// New builds a filter over dao with direction Both and no radius.
func New(dao *mlgdao.MLGDao) *Filter {
	return &Filter{dao: dao, Direction: mlgdao.Both}
}

// AttachCache binds a time-series cache; once attached, e(l,x) lookups
// are served from the cache's sliding window instead of per-layer OLink
// reads.
func (f *Filter) AttachCache(c *tscache.Cache) {
	f.cache = c
}

// ComputeTWCoeffs returns layer's temporal window coefficients: the
// self term at offset 0 (lambda 0), plus up to Radius terms in each
// configured direction, stopping early at a stack boundary.
func (f *Filter) ComputeTWCoeffs(layer entity.ID) ([]Coeff, error) {
	coeffs := []Coeff{{Layer: layer, Lambda: 0, Offset: 0}}

	if f.Direction == mlgdao.Past || f.Direction == mlgdao.Both {
		extra, err := f.walkPast(layer)
		if err != nil {
			return nil, err
		}
		coeffs = append(coeffs, extra...)
	}
	if f.Direction == mlgdao.Future || f.Direction == mlgdao.Both {
		extra, err := f.walkFuture(layer)
		if err != nil {
			return nil, err
		}
		coeffs = append(coeffs, extra...)
	}
	return coeffs, nil
}

func (f *Filter) walkPast(start entity.ID) ([]Coeff, error) {
	var out []Coeff
	cur, lambda := start, 0.0
	for k := 1; k <= f.Radius; k++ {
		child, err := f.dao.Layers().Child(cur)
		if err != nil {
			return nil, err
		}
		if !child.Valid() {
			break
		}
		term, err := f.clinkTerm(child, cur)
		if err != nil {
			return nil, err
		}
		lambda += term
		out = append(out, Coeff{Layer: child, Lambda: lambda, Offset: -k})
		cur = child
	}
	return out, nil
}

func (f *Filter) walkFuture(start entity.ID) ([]Coeff, error) {
	var out []Coeff
	cur, lambda := start, 0.0
	for k := 1; k <= f.Radius; k++ {
		parent, err := f.dao.Layers().Parent(cur)
		if err != nil {
			return nil, err
		}
		if !parent.Valid() {
			break
		}
		term, err := f.clinkTerm(cur, parent)
		if err != nil {
			return nil, err
		}
		lambda += term
		out = append(out, Coeff{Layer: parent, Lambda: lambda, Offset: k})
		cur = parent
	}
	return out, nil
}

func (f *Filter) clinkTerm(child, parent entity.ID) (float64, error) {
	if f.LambdaOverride != nil {
		return *f.LambdaOverride, nil
	}
	w, ok, err := f.dao.CLinkWeight(child, parent)
	if err != nil {
		return 0, err
	}
	if !ok || w == 0 {
		return 0, nil
	}
	return 1.0 / w, nil
}

// Compute returns the new observation for (layer, node). On empty
// domain (norm == 0) the original OLink weight is returned unchanged
// and a diagnostic is logged.
func (f *Filter) Compute(layer, node entity.ID) (float64, error) {
	coeffs, err := f.ComputeTWCoeffs(layer)
	if err != nil {
		return 0, err
	}

	sum, norm := 0.0, 0.0
	for _, c := range coeffs {
		coef := 1.0
		if c.Lambda != 0 {
			coef = 1.0 / c.Lambda
		}
		v, err := f.observation(node, c)
		if err != nil {
			return 0, err
		}
		sum += coef * v
		norm += coef
	}

	if f.Radius == 0 || !f.TimeOnly {
		neighbors, err := f.dao.Links().Session().Neighborhood(
			entity.TypeHLink, f.dao.Links().Session().NewSet(node), store.Any)
		if err != nil {
			return 0, err
		}
		for _, m := range neighbors.Ids() {
			if _, excluded := f.Excluded[m]; excluded {
				continue
			}
			h, ok, err := f.dao.HLinkWeight(node, m)
			if err != nil {
				return 0, err
			}
			if !ok || h == 0 {
				continue
			}
			for _, c := range coeffs {
				coef := 1.0 / (1.0/h + c.Lambda)
				v, err := f.observation(m, c)
				if err != nil {
					return 0, err
				}
				sum += coef * v
				norm += coef
			}
		}
	}

	if norm == 0 {
		log.Printf("tvfilter: empty domain at layer=%d node=%d; keeping original weight", layer, node)
		return f.olinkWeight(layer, node)
	}
	return sum / norm, nil
}

func (f *Filter) observation(node entity.ID, c Coeff) (float64, error) {
	if f.cache != nil {
		ts, err := f.cache.Get(node)
		if err != nil {
			return 0, err
		}
		v, ok := ts.ValueAtOffset(c.Offset)
		if !ok {
			return 0, nil
		}
		return v, nil
	}
	return f.olinkWeight(c.Layer, node)
}

func (f *Filter) olinkWeight(layer, node entity.ID) (float64, error) {
	id, err := f.dao.Links().FindOLink(layer, node)
	if err != nil {
		return 0, err
	}
	if !id.Valid() {
		return 0, nil
	}
	attrs, err := f.dao.Links().GetOLink(id)
	if err != nil {
		return 0, err
	}
	w, _ := attrs[entity.AttrOLinkWeight].Float64()
	return w, nil
}
