package component

import (
	"testing"
)

func filterRegistry(t *testing.T) *Registry {
	t.Helper()
	return loadedRegistry(t, &MockRepository{
		components: []Component{
			{ID: 1, Category: CategoryInverter},
			{ID: 2, Category: CategoryBattery},
			{ID: 3, Category: CategoryMeter},
			{ID: 4, Category: CategoryInverter},
			{ID: 5, Category: CategoryBattery},
		},
		connections: []Connection{
			{Start: 1, End: 2},
			{Start: 1, End: 3},
			{Start: 2, End: 3},
			{Start: 3, End: 4},
		},
	})
}

func componentIDs(cs []Component) []int64 {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

func int64SlicesEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterComponents(t *testing.T) {
	r := filterRegistry(t)

	tests := []struct {
		name       string
		ids        []int64
		categories []Category
		wantIDs    []int64
	}{
		{
			name:    "no constraints returns everything",
			wantIDs: []int64{1, 2, 3, 4, 5},
		},
		{
			name:    "ids only is OR within the set",
			ids:     []int64{2, 4},
			wantIDs: []int64{2, 4},
		},
		{
			name:       "categories only is OR within the set",
			categories: []Category{CategoryInverter, CategoryMeter},
			wantIDs:    []int64{1, 3, 4},
		},
		{
			name:       "ids AND categories",
			ids:        []int64{1, 2, 3},
			categories: []Category{CategoryInverter, CategoryBattery},
			wantIDs:    []int64{1, 2},
		},
		{
			name:       "disjoint filters match nothing",
			ids:        []int64{3},
			categories: []Category{CategoryBattery},
			wantIDs:    []int64{},
		},
		{
			name:    "unknown id matches nothing",
			ids:     []int64{42},
			wantIDs: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := componentIDs(r.FilterComponents(tt.ids, tt.categories))
			if !int64SlicesEqual(got, tt.wantIDs) {
				t.Errorf("FilterComponents(%v, %v) = %v, want %v",
					tt.ids, tt.categories, got, tt.wantIDs)
			}
		})
	}
}

func TestFilterComponents_PreservesInsertionOrder(t *testing.T) {
	r := filterRegistry(t)

	// Filter sets are unordered; results must still follow registry order.
	got := componentIDs(r.FilterComponents([]int64{5, 1, 4}, nil))
	want := []int64{1, 4, 5}
	if !int64SlicesEqual(got, want) {
		t.Errorf("FilterComponents() order = %v, want %v", got, want)
	}
}

func TestFilterConnections(t *testing.T) {
	r := filterRegistry(t)

	tests := []struct {
		name   string
		starts []int64
		ends   []int64
		want   []Connection
	}{
		{
			name: "no constraints returns everything",
			want: []Connection{{1, 2}, {1, 3}, {2, 3}, {3, 4}},
		},
		{
			name:   "starts only",
			starts: []int64{1},
			want:   []Connection{{1, 2}, {1, 3}},
		},
		{
			name: "ends only",
			ends: []int64{3},
			want: []Connection{{1, 3}, {2, 3}},
		},
		{
			name:   "starts AND ends",
			starts: []int64{1, 2},
			ends:   []int64{3},
			want:   []Connection{{1, 3}, {2, 3}},
		},
		{
			name:   "no match",
			starts: []int64{4},
			ends:   []int64{1},
			want:   []Connection{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.FilterConnections(tt.starts, tt.ends)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterConnections(%v, %v) = %v, want %v",
					tt.starts, tt.ends, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FilterConnections()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
