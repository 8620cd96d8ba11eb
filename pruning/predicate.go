// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pruning

import (
	"fmt"

	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanerr"
)

// Predicate is the already-compiled pruning artifact this engine
// consumes (expression compilation itself is an external
// collaborator, out of scope for this package). Given a
// StatisticsSource over K row groups, it returns a boolean vector of
// length K where true means "cannot prune, must read."
//
// Soundness invariant: Evaluate must return false for a row group
// only when it has proven that no tuple in that row group can
// satisfy the underlying predicate. Any ambiguity -- a missing
// column, an unsupported physical type, an operator the engine
// cannot evaluate from statistics alone -- must yield true.
type Predicate struct {
	root node
}

// node is the internal compiled-expression representation. It is
// unexported: callers build a Predicate via the constructors below
// (Compare, And, Or, Unsupported), mirroring ion/blockfmt/filter.go's
// closed set of evalfn constructors rather than exposing an open
// expression hierarchy.
type node interface {
	eval(src *StatisticsSource) ([]bool, error)
}

// Evaluate runs the compiled predicate against src, returning the
// keep vector or a StatisticsUnavailable-flavored error if the
// predicate tree itself is malformed.
func (p *Predicate) Evaluate(src *StatisticsSource) ([]bool, error) {
	if p == nil || p.root == nil {
		return nil, scanerr.New(scanerr.StatisticsUnavailable, "pruning.Evaluate", fmt.Errorf("empty predicate"))
	}
	return p.root.eval(src)
}

// Op is a comparison operator between a column's row-group
// statistics and a literal Scalar.
type Op int

const (
	OpGreaterThan Op = iota
	OpGreaterEq
	OpLessThan
	OpLessEq
	OpEqual
)

type compareNode struct {
	column  string
	op      Op
	literal rowgroup.Scalar
}

// Compare builds a leaf predicate comparing column against literal
// using op. The resulting node prunes a row group only when the
// column's min/max statistics prove the comparison cannot hold for
// any row in that group.
func Compare(column string, op Op, literal rowgroup.Scalar) *Predicate {
	return &Predicate{root: &compareNode{column: column, op: op, literal: literal}}
}

func (c *compareNode) eval(src *StatisticsSource) ([]bool, error) {
	mins, ok := src.MinValues(c.column)
	if !ok {
		return allTrue(src.NumContainers()), nil
	}
	maxs, _ := src.MaxValues(c.column)
	keep := make([]bool, src.NumContainers())
	for i := range keep {
		keep[i] = rowMightMatch(mins[i], maxs[i], c.op, c.literal)
	}
	return keep, nil
}

// rowMightMatch reports whether some value in [min, max] could
// satisfy `col OP literal`, given that min/max may themselves be
// null (meaning "no statistics for this row group").
func rowMightMatch(min, max rowgroup.Scalar, op Op, lit rowgroup.Scalar) bool {
	if min.IsNull() || max.IsNull() || min.Type() != lit.Type() {
		return true
	}
	switch op {
	case OpGreaterThan:
		return max.Compare(lit) > 0
	case OpGreaterEq:
		return max.Compare(lit) >= 0
	case OpLessThan:
		return min.Compare(lit) < 0
	case OpLessEq:
		return min.Compare(lit) <= 0
	case OpEqual:
		return min.Compare(lit) <= 0 && max.Compare(lit) >= 0
	default:
		return true
	}
}

func allTrue(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

type boolOp int

const (
	opAnd boolOp = iota
	opOr
)

type combineNode struct {
	op          boolOp
	left, right node
}

// And builds a conjunction. A row group is pruned from an And only
// if either conjunct alone proves it impossible -- this is sound
// even when the other conjunct cannot be evaluated from statistics
// at all (see Unsupported).
func And(left, right *Predicate) *Predicate {
	return &Predicate{root: &combineNode{op: opAnd, left: left.root, right: right.root}}
}

// Or builds a disjunction. A row group can only be pruned from an
// Or if *both* disjuncts prove it impossible.
func Or(left, right *Predicate) *Predicate {
	return &Predicate{root: &combineNode{op: opOr, left: left.root, right: right.root}}
}

func (c *combineNode) eval(src *StatisticsSource) ([]bool, error) {
	lv, err := c.left.eval(src)
	if err != nil {
		return nil, err
	}
	rv, err := c.right.eval(src)
	if err != nil {
		return nil, err
	}
	out := make([]bool, src.NumContainers())
	for i := range out {
		if c.op == opAnd {
			out[i] = lv[i] && rv[i]
		} else {
			out[i] = lv[i] || rv[i]
		}
	}
	return out, nil
}

type unsupportedNode struct{}

// Unsupported builds a leaf that can never be evaluated from
// row-group statistics (for example, a modulo or a function call on
// a column's value rather than its summary). It always reports
// "cannot prune, must read" -- the sound default -- so that it can
// still be safely combined with And/Or per the partially-unsupported
// scenarios in spec.md section 8.
func Unsupported() *Predicate {
	return &Predicate{root: unsupportedNode{}}
}

func (unsupportedNode) eval(src *StatisticsSource) ([]bool, error) {
	return allTrue(src.NumContainers()), nil
}
