package dokvs

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/mundrapranay/silhouette-db/internal/gf2"
	"github.com/mundrapranay/silhouette-db/internal/peel"
)

// solveCore assigns every vertex touched by a 2-core key and every dense
// column. Peeled keys are handled afterwards by backfill.
func (g *gct) solveCore(enc *gctEncoding, graph *peel.Hypergraph, core []int) error {
	if len(core) == 0 {
		for j := 0; j < g.denseM; j++ {
			enc.storage[g.sparseM+j] = enc.fill.next()
		}
		return nil
	}

	vertices := peel.CoreVertices(graph, core)
	g.logger.Debug("solving 2-core", "type", g.typ, "core_keys", len(core),
		"core_vertices", len(vertices), "dense_columns", g.denseM)
	if len(core) > len(vertices)+g.denseM {
		return fmt.Errorf("%w: 2-core has %d keys but only %d unknowns",
			ErrCannotEncode, len(core), len(vertices)+g.denseM)
	}
	if enc.fill.doubly {
		return g.solveDoubly(enc, core, vertices)
	}
	return g.solveFree(enc, core, vertices)
}

// solveDoubly solves the core over the relabeled core vertices followed
// by the dense columns, drawing every free variable at random.
func (g *gct) solveDoubly(enc *gctEncoding, core, vertices []int) error {
	d := len(vertices)
	column := make(map[int]int, d)
	for i, v := range vertices {
		column[v] = i
	}
	width := d + g.denseM
	rows := make([]*bitset.BitSet, len(core))
	rhs := make([][]byte, len(core))
	for i, e := range core {
		row := bitset.New(uint(width))
		for _, v := range enc.sparse[e] {
			row.Set(uint(column[v]))
		}
		dense := enc.dense[e]
		for j, ok := dense.NextSet(0); ok; j, ok = dense.NextSet(j + 1) {
			row.Set(uint(d) + j)
		}
		rows[i] = row
		rhs[i] = enc.values[e]
	}

	status, x := gf2.FullSolve(rows, width, rhs, enc.fill.next)
	if status != gf2.Consistent {
		return fmt.Errorf("%w: core linear system is %s", ErrCannotEncode, status)
	}
	for i, v := range vertices {
		enc.storage[v] = x[i]
	}
	for j := 0; j < g.denseM; j++ {
		enc.storage[g.sparseM+j] = x[d+j]
	}
	return nil
}

// solveFree solves the core directly over all m columns with free
// variables set to zero. Only core vertices and dense columns are kept;
// the remaining sparse columns belong to backfill.
func (g *gct) solveFree(enc *gctEncoding, core, vertices []int) error {
	width := g.M()
	rows := make([]*bitset.BitSet, len(core))
	rhs := make([][]byte, len(core))
	for i, e := range core {
		row := bitset.New(uint(width))
		for _, v := range enc.sparse[e] {
			row.Set(uint(v))
		}
		dense := enc.dense[e]
		for j, ok := dense.NextSet(0); ok; j, ok = dense.NextSet(j + 1) {
			row.Set(uint(g.sparseM) + j)
		}
		rows[i] = row
		rhs[i] = enc.values[e]
	}

	status, x := gf2.FreeSolve(rows, width, rhs, g.byteL)
	if status != gf2.Consistent {
		return fmt.Errorf("%w: core linear system is %s", ErrCannotEncode, status)
	}
	for _, v := range vertices {
		enc.storage[v] = x[v]
	}
	for j := 0; j < g.denseM; j++ {
		enc.storage[g.sparseM+j] = x[g.sparseM+j]
	}
	return nil
}

// backfill replays the peeling in reverse. Each key finds at least one
// of its sparse positions unassigned; all but the last are filled and
// the last absorbs the key's value.
func (g *gct) backfill(enc *gctEncoding, removed []peel.Removal) error {
	dense := enc.storage[g.sparseM:]
	for i := len(removed) - 1; i >= 0; i-- {
		e := removed[i].Edge
		acc := append([]byte(nil), enc.values[e]...)
		for j, ok := enc.dense[e].NextSet(0); ok; j, ok = enc.dense[e].NextSet(j + 1) {
			xorInto(acc, dense[j])
		}
		last := -1
		for _, v := range enc.sparse[e] {
			if enc.storage[v] != nil {
				xorInto(acc, enc.storage[v])
				continue
			}
			if last >= 0 {
				enc.storage[last] = enc.fill.next()
				xorInto(acc, enc.storage[last])
			}
			last = v
		}
		if last < 0 {
			return fmt.Errorf("%w: all %d positions of key %q were assigned before backfill reached it",
				ErrInvariantViolation, len(enc.sparse[e]), enc.keys[e])
		}
		enc.storage[last] = acc
	}
	return nil
}
