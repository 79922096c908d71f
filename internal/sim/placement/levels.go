package placement

import (
	"errors"
	"fmt"
)

var ErrInvalidLevelConfiguration = errors.New("placement: invalid level configuration")

// maxLevels bounds the subdivision root step 2^(N-1) to a sane int.
const maxLevels = 24

// LevelSet holds the linear block size of each level, finest first.
type LevelSet []int

func (l LevelSet) Len() int { return len(l) }

func (l LevelSet) BlockSize(level int) int { return l[level] }

func (l LevelSet) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidLevelConfiguration)
	}
	if len(l) > maxLevels {
		return fmt.Errorf("%w: %d levels (max %d)", ErrInvalidLevelConfiguration, len(l), maxLevels)
	}
	for i, s := range l {
		if s <= 0 {
			return fmt.Errorf("%w: block size %d at level %d", ErrInvalidLevelConfiguration, s, i)
		}
		if i > 0 && s <= l[i-1] {
			return fmt.Errorf("%w: block size %d at level %d not above %d", ErrInvalidLevelConfiguration, s, i, l[i-1])
		}
	}
	return nil
}

// ValidateSubdivision additionally requires level i to be 2^i, the chunk
// extent subdivision produces at that level.
func (l LevelSet) ValidateSubdivision() error {
	if err := l.Validate(); err != nil {
		return err
	}
	for i, s := range l {
		if s != 1<<i {
			return fmt.Errorf("%w: subdivision needs block size %d at level %d, got %d", ErrInvalidLevelConfiguration, 1<<i, i, s)
		}
	}
	return nil
}

// PowersOfTwo returns [1, 2, 4, ...] with n levels, the sizes implied by
// subdivision.
func PowersOfTwo(n int) LevelSet {
	l := make(LevelSet, n)
	for i := range l {
		l[i] = 1 << i
	}
	return l
}
