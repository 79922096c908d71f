package mathx

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Log2 returns floor(log2(v)) for v > 0 and -1 otherwise.
func Log2(v int) int {
	if v <= 0 {
		return -1
	}
	n := -1
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

// Mix64 is the splitmix64 finalizer.
func Mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// HashInts folds an arbitrary key list into seed. Order matters.
func HashInts(seed uint64, keys ...int) uint64 {
	h := Mix64(seed)
	for _, k := range keys {
		h = Mix64(h ^ (uint64(uint32(int32(k))) * 0xc2b2ae3d27d4eb4f))
	}
	return h
}
