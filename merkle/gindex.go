package merkle

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

// MaxDepth is the deepest level a GIndex can address in 64 bits.
const MaxDepth = 63

var (
	ErrIndexOutOfRange = errors.New("merkle: index out of range")
	ErrInvalidProof    = errors.New("merkle: invalid proof")
	ErrUnknownPath     = errors.New("merkle: unknown path")
)

// GIndex is a generalized index: 2^depth + position.
// The root is 1, its children are 2 and 3, and so on.
type GIndex uint64

// ComputeGIndex returns 2^depth + position.
func ComputeGIndex(depth uint8, position uint64) (GIndex, error) {
	if depth > MaxDepth {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "depth %d exceeds %d", depth, MaxDepth)
	}
	if position >= uint64(1)<<depth {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "position %d does not fit depth %d", position, depth)
	}
	return GIndex(uint64(1)<<depth | position), nil
}

// Depth is floor(log2(g)). Zero is not a valid gindex and reports depth 0.
func (g GIndex) Depth() uint8 {
	if g == 0 {
		return 0
	}
	return uint8(bits.Len64(uint64(g)) - 1)
}

// Position is the offset of the node inside its level.
func (g GIndex) Position() uint64 {
	return uint64(g) - uint64(1)<<g.Depth()
}

func (g GIndex) Sibling() GIndex { return g ^ 1 }

func (g GIndex) Parent() GIndex { return g >> 1 }

func (g GIndex) Left() GIndex { return g << 1 }

func (g GIndex) Right() GIndex { return g<<1 | 1 }

// IsLeft reports whether the node is the left child of its parent.
func (g GIndex) IsLeft() bool { return g&1 == 0 }

// IsAncestorOf reports whether d lies in the subtree rooted at g (g itself included).
func (g GIndex) IsAncestorOf(d GIndex) bool {
	if g == 0 || d == 0 || d < g {
		return false
	}
	shift := d.Depth() - g.Depth()
	return d>>shift == g
}

func (g GIndex) String() string {
	return fmt.Sprintf("%d", uint64(g))
}

// Concat returns the gindex of child, expressed relative to the subtree
// rooted at parent, as a gindex of the enclosing tree.
func Concat(parent, child GIndex) (GIndex, error) {
	if parent == 0 || child == 0 {
		return 0, errors.Wrap(ErrIndexOutOfRange, "zero gindex")
	}
	depth := child.Depth()
	if int(parent.Depth())+int(depth) > MaxDepth {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "concat %d:%d exceeds depth %d", parent, child, MaxDepth)
	}
	return parent<<depth | GIndex(child.Position()), nil
}

// ConcatAll folds Concat over a path of subtree gindices, root first.
func ConcatAll(path ...GIndex) (GIndex, error) {
	out := GIndex(1)
	for _, g := range path {
		var err error
		if out, err = Concat(out, g); err != nil {
			return 0, err
		}
	}
	return out, nil
}
