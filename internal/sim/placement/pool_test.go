package placement

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"blockterrain.ai/internal/sim/rng"
)

func drain(p *Pool) []int {
	var out []int
	for {
		i, ok := p.Pop()
		if !ok {
			return out
		}
		out = append(out, i)
	}
}

func TestPool_RemoveSkipsLazily(t *testing.T) {
	p := NewPool(10, []int{1, 3, 5, 7, 9})
	if !p.Remove(5) || p.Remove(5) || p.Remove(2) {
		t.Fatalf("unexpected Remove results")
	}
	if p.Len() != 4 {
		t.Fatalf("len=%d want 4", p.Len())
	}
	if diff := cmp.Diff([]int{1, 3, 7, 9}, drain(p)); diff != "" {
		t.Fatalf("pop order:\n%s", diff)
	}
	if p.Len() != 0 {
		t.Fatalf("len=%d after drain", p.Len())
	}
}

func TestPool_CloneIsIndependent(t *testing.T) {
	p := NewPool(6, []int{0, 1, 2, 3, 4, 5})
	p.Pop()
	p.Remove(3)
	c := p.Clone()
	c.Remove(4)
	if !p.Contains(4) {
		t.Fatalf("clone removal leaked into source")
	}
	if diff := cmp.Diff([]int{1, 2, 5}, drain(c)); diff != "" {
		t.Fatalf("clone order:\n%s", diff)
	}
}

func TestPool_ShuffleKeepsMembers(t *testing.T) {
	idx := make([]int, 50)
	for i := range idx {
		idx[i] = i
	}
	p := NewPool(50, idx)
	p.Remove(10)
	p.Shuffle(rng.New(3))
	got := drain(p)
	if len(got) != 49 {
		t.Fatalf("len=%d want 49", len(got))
	}
	seen := map[int]bool{}
	for _, i := range got {
		if i == 10 || seen[i] {
			t.Fatalf("bad member %d", i)
		}
		seen[i] = true
	}
	if cmp.Equal(got[:10], []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Fatalf("shuffle left prefix in order")
	}
}
