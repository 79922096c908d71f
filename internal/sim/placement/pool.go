package placement

import "blockterrain.ai/internal/sim/rng"

// Pool is an ordered set of grid indexes with O(1) removal. Removed entries
// stay in order and are skipped lazily by Pop.
type Pool struct {
	order  []int
	member []bool
	next   int
	n      int
}

// NewPool holds idx, in that order, over a grid of cells cells.
func NewPool(cells int, idx []int) *Pool {
	p := &Pool{order: append([]int(nil), idx...), member: make([]bool, cells)}
	for _, i := range idx {
		if !p.member[i] {
			p.member[i] = true
			p.n++
		}
	}
	return p
}

func (p *Pool) Len() int { return p.n }

func (p *Pool) Contains(i int) bool { return p.member[i] }

// Remove reports whether i was a member.
func (p *Pool) Remove(i int) bool {
	if !p.member[i] {
		return false
	}
	p.member[i] = false
	p.n--
	return true
}

// Pop removes and returns the first remaining member.
func (p *Pool) Pop() (int, bool) {
	for p.next < len(p.order) {
		i := p.order[p.next]
		p.next++
		if p.member[i] {
			p.member[i] = false
			p.n--
			return i, true
		}
	}
	return 0, false
}

// Each visits the remaining members in order.
func (p *Pool) Each(fn func(i int)) {
	for _, i := range p.order[p.next:] {
		if p.member[i] {
			fn(i)
		}
	}
}

func (p *Pool) compact() {
	out := make([]int, 0, p.n)
	p.Each(func(i int) { out = append(out, i) })
	p.order = out
	p.next = 0
}

func (p *Pool) Clone() *Pool {
	p.compact()
	return &Pool{
		order:  append([]int(nil), p.order...),
		member: append([]bool(nil), p.member...),
		n:      p.n,
	}
}

// Shuffle permutes the remaining members with Fisher–Yates.
func (p *Pool) Shuffle(r *rng.RNG) {
	p.compact()
	r.Shuffle(len(p.order), func(i, j int) { p.order[i], p.order[j] = p.order[j], p.order[i] })
}
