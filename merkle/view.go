package merkle

import (
	"github.com/pkg/errors"
	"github.com/protolambda/ztyp/tree"
)

// MerkleTreeView gives random access to the nodes of a merkle tree.
// Implementations decide how the tree is backed; the proof engine only
// needs node lookups and named path resolution.
type MerkleTreeView interface {
	// NodeAt returns the root of the node at g.
	NodeAt(g GIndex) (Root, error)
	// PathInfo resolves a dotted field path (e.g. "validators.12.pubkey").
	PathInfo(path string) (GIndex, error)
}

// PathResolver maps a dotted field path to a gindex.
type PathResolver func(path string) (GIndex, error)

// NodeView is a MerkleTreeView over a ztyp backing node.
type NodeView struct {
	node     tree.Node
	hFn      tree.HashFn
	maxDepth uint8
	resolve  PathResolver
}

// NewNodeView wraps node. Lookups deeper than maxDepth fail with
// ErrIndexOutOfRange even if the backing could navigate further.
func NewNodeView(node tree.Node, maxDepth uint8, resolve PathResolver) *NodeView {
	if maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	return &NodeView{
		node:     node,
		hFn:      tree.GetHashFn(),
		maxDepth: maxDepth,
		resolve:  resolve,
	}
}

func (v *NodeView) NodeAt(g GIndex) (Root, error) {
	if g == 0 || g.Depth() > v.maxDepth {
		return Root{}, errors.Wrapf(ErrIndexOutOfRange, "gindex %d beyond depth %d", g, v.maxDepth)
	}
	n, err := v.node.Getter(tree.Gindex64(g))
	if err != nil {
		return Root{}, errors.Wrapf(ErrIndexOutOfRange, "gindex %d: %v", g, err)
	}
	return Root(n.MerkleRoot(v.hFn)), nil
}

func (v *NodeView) PathInfo(path string) (GIndex, error) {
	if v.resolve == nil {
		return 0, errors.Wrap(ErrUnknownPath, path)
	}
	return v.resolve(path)
}

// Root computes (and caches in the backing) every node root of the tree.
func (v *NodeView) Root() Root {
	return Root(v.node.MerkleRoot(v.hFn))
}

// MaxDepth is the static capacity of the view.
func (v *NodeView) MaxDepth() uint8 {
	return v.maxDepth
}

// NewSubtreeView fills a subtree of the given depth with leaves, padding with
// zero hashes. Useful for fixed containers and synthetic trees.
func NewSubtreeView(leaves []Root, depth uint8, resolve PathResolver) (*NodeView, error) {
	nodes := make([]tree.Node, len(leaves))
	for i := range leaves {
		r := tree.Root(leaves[i])
		nodes[i] = &r
	}
	node, err := tree.SubtreeFillToContents(nodes, depth)
	if err != nil {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "fill %d leaves at depth %d: %v", len(leaves), depth, err)
	}
	return NewNodeView(node, depth, resolve), nil
}

// NewSparseView builds a tree of the given depth where only the supplied
// nodes are set; everything else is a zero subtree. Nodes are leaves of the
// resulting tree, so none may sit below another.
func NewSparseView(nodes map[GIndex]Root, depth uint8, resolve PathResolver) (*NodeView, error) {
	for g := range nodes {
		if g == 0 || g.Depth() > depth {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "gindex %d beyond depth %d", g, depth)
		}
		for other := range nodes {
			if other != g && g.IsAncestorOf(other) {
				return nil, errors.Wrapf(ErrIndexOutOfRange, "gindex %d is above %d", g, other)
			}
		}
	}
	return NewNodeView(buildSparse(1, nodes, depth), depth, resolve), nil
}

func buildSparse(g GIndex, nodes map[GIndex]Root, depth uint8) tree.Node {
	if r, ok := nodes[g]; ok {
		leaf := tree.Root(r)
		return &leaf
	}
	below := false
	for k := range nodes {
		if g.IsAncestorOf(k) {
			below = true
			break
		}
	}
	if !below {
		return tree.ZeroNode(uint32(depth - g.Depth()))
	}
	return tree.NewPairNode(buildSparse(g.Left(), nodes, depth), buildSparse(g.Right(), nodes, depth))
}
