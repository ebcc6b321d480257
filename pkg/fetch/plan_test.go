package fetch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/trawlkit/trawl/pkg/store"
)

func objs(sizes ...int64) []store.ObjectMetadata {
	out := make([]store.ObjectMetadata, len(sizes))
	for i, size := range sizes {
		out[i] = store.ObjectMetadata{Name: fmt.Sprintf("obj-%02d", i), Size: size}
	}
	return out
}

func groupSizes(groups []Group) [][]int64 {
	out := make([][]int64, len(groups))
	for i, g := range groups {
		for _, obj := range g.Objects {
			out[i] = append(out[i], obj.Size)
		}
	}
	return out
}

func TestPlanGrouping(t *testing.T) {
	tests := []struct {
		name string
		in   []store.ObjectMetadata
		max  int64
		want [][]int64
	}{
		{
			name: "bound splits a run",
			in:   objs(1024, 2048, 500),
			max:  3000,
			want: [][]int64{{1024}, {2048, 500}},
		},
		{
			name: "everything fits",
			in:   objs(100, 200, 300),
			max:  1000,
			want: [][]int64{{100, 200, 300}},
		},
		{
			name: "strict bound is never exceeded",
			in:   objs(500, 500, 1),
			max:  1000,
			want: [][]int64{{500, 500}, {1}},
		},
		{
			name: "oversize object becomes a singleton",
			in:   objs(100, 5000, 100),
			max:  1000,
			want: [][]int64{{100}, {5000}, {100}},
		},
		{
			name: "zero bound disables grouping",
			in:   objs(1, 2, 3),
			max:  0,
			want: [][]int64{{1}, {2}, {3}},
		},
		{
			name: "empty catalog",
			in:   nil,
			max:  1000,
			want: [][]int64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := Plan(tt.in, tt.max)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			got := groupSizes(groups)
			if len(got) != len(tt.want) {
				t.Fatalf("got groups %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if len(got[i]) != len(tt.want[i]) {
					t.Fatalf("group %d: got %v, want %v", i, got[i], tt.want[i])
				}
				for j := range tt.want[i] {
					if got[i][j] != tt.want[i][j] {
						t.Fatalf("group %d: got %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
			for _, g := range groups {
				if tt.max > 0 && len(g.Objects) > 1 && g.TotalSize > tt.max {
					t.Errorf("group of %d objects totals %d, bound is %d",
						len(g.Objects), g.TotalSize, tt.max)
				}
			}
		})
	}
}

func TestPlanSourceCap(t *testing.T) {
	in := objs(make([]int64, 50)...)
	for i := range in {
		in[i].Size = 1
	}
	groups, err := Plan(in, 1<<20)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Objects) != store.MaxComposeSources {
		t.Fatalf("first group holds %d objects, want %d",
			len(groups[0].Objects), store.MaxComposeSources)
	}
	if len(groups[1].Objects) != 50-store.MaxComposeSources {
		t.Fatalf("second group holds %d objects, want %d",
			len(groups[1].Objects), 50-store.MaxComposeSources)
	}
}

func TestPlanOffsets(t *testing.T) {
	groups, err := Plan(objs(10, 20, 30), 100)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	wantOffsets := []int64{0, 10, 30}
	for i, want := range wantOffsets {
		if g.Offsets[i] != want {
			t.Errorf("offset %d: got %d, want %d", i, g.Offsets[i], want)
		}
	}
	if g.TotalSize != 60 {
		t.Errorf("total size: got %d, want 60", g.TotalSize)
	}
}

func TestPlanDeterministic(t *testing.T) {
	in := objs(512, 1024, 128, 4096, 64, 64, 2048)
	a, err := Plan(in, 2048)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	b, err := Plan(in, 2048)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	as, bs := groupSizes(a), groupSizes(b)
	if len(as) != len(bs) {
		t.Fatalf("plans differ: %v vs %v", as, bs)
	}
	for i := range as {
		if len(as[i]) != len(bs[i]) {
			t.Fatalf("plans differ at group %d: %v vs %v", i, as[i], bs[i])
		}
	}
}

func TestPlanNegativeBound(t *testing.T) {
	_, err := Plan(objs(1), -1)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError", err)
	}
}
