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
	"testing"

	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanmetrics"
)

func TestBuildKeepFuncCountsPrunedGroups(t *testing.T) {
	groups := []rowgroup.Meta{
		groupWithAgeRange(0, 10),
		groupWithAgeRange(20, 30),
		groupWithAgeRange(40, 50),
	}
	pred := Compare("age", OpGreaterThan, rowgroup.Int64(15))
	metrics := scanmetrics.NewBundle()
	keep := BuildKeepFunc(pred, metrics, schemaWithAge(), groups)

	if keep(0) {
		t.Errorf("group 0 should be pruned")
	}
	if !keep(1) || !keep(2) {
		t.Errorf("groups 1 and 2 must be kept")
	}
	if got := metrics.Counter("row_groups_pruned").Value(); got != 1 {
		t.Errorf("row_groups_pruned = %d, want 1", got)
	}
}

func TestBuildKeepFuncOnEvaluationErrorKeepsEverything(t *testing.T) {
	groups := []rowgroup.Meta{groupWithAgeRange(0, 10), groupWithAgeRange(20, 30)}
	var broken *Predicate // nil predicate: Evaluate always errors
	metrics := scanmetrics.NewBundle()
	keep := BuildKeepFunc(broken, metrics, schemaWithAge(), groups)

	for i := range groups {
		if !keep(i) {
			t.Errorf("group %d: a failed predicate evaluation must never prune", i)
		}
	}
	if got := metrics.Counter("predicate_evaluation_errors").Value(); got != 1 {
		t.Errorf("predicate_evaluation_errors = %d, want 1", got)
	}
}
