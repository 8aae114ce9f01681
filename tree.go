package gudablas

import (
	"fmt"

	"github.com/LynnColeArt/gudablas/compute"
	"github.com/LynnColeArt/gudablas/traits"
)

// NodeKind is the closed set of operation node kinds.
type NodeKind int

const (
	LeafView NodeKind = iota
	LeafScalar
	Elementwise
	Reduction
)

func (k NodeKind) String() string {
	switch k {
	case LeafView:
		return "view"
	case LeafScalar:
		return "scalar"
	case Elementwise:
		return "elementwise"
	case Reduction:
		return "reduction"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Shape selects the node family built by Make.
type Shape int

const (
	ShapeElementwise Shape = iota
	ShapeReduction
)

// NodeID indexes a node in its tree's arena.
type NodeID int

type node[T compute.Scalar] struct {
	kind   NodeKind
	view   View[T]
	scalar T
	op     compute.Op
	rop    compute.ReduceOp
	args   []NodeID
	size   int
}

type rootKind int

const (
	rootNone rootKind = iota
	rootAssign
	rootAssign2
	rootReduce
	rootReduceIndex
	rootContract
)

// root is the single statement a tree executes.
type root[T compute.Scalar] struct {
	kind rootKind
	dst  [2]View[T]
	src  [2]NodeID

	// reduction node and index destination
	red  NodeID
	idst View[compute.IndexValue[T]]

	// contraction operands
	c, a, b     Matrix[T]
	alpha, beta T
}

// Tree is an arena of operation nodes plus one root statement. Nodes refer
// to their operands by NodeID, never by pointer, and live as long as the
// tree. A tree is built on the control goroutine and handed to an Executor.
type Tree[T compute.Scalar] struct {
	name    string
	ph      *PolicyHandler
	scalar  traits.ScalarType
	index   traits.IndexType
	traits  traits.PacketTraits
	kernels *kernelSet[T]
	nodes   []node[T]
	root    root[T]
}

// TreeOption configures NewTree.
type TreeOption func(*treeOptions)

type treeOptions struct {
	name  string
	index traits.IndexType
}

// WithIndexType selects the index type of index reductions.
func WithIndexType(t traits.IndexType) TreeOption {
	return func(o *treeOptions) { o.index = t }
}

// WithName names the launch the tree lowers to.
func WithName(name string) TreeOption {
	return func(o *treeOptions) { o.name = name }
}

// NewTree starts a statement over element type T on ph's device. It fails
// with UnsupportedOperation when the device cannot compute in T or no
// kernel is registered for the (scalar, index) pair.
func NewTree[T compute.Scalar](ph *PolicyHandler, opts ...TreeOption) (*Tree[T], error) {
	o := treeOptions{name: "tree", index: traits.Int64}
	for _, opt := range opts {
		opt(&o)
	}
	s := traits.Of[T]()
	pt := ph.dev.Traits(s)
	if !pt.Supported {
		return nil, NewUnsupportedError(o.name,
			fmt.Sprintf("%s is not supported on %s device", s, ph.dev.Kind))
	}
	ks, err := lookupKernels[T](s, o.index)
	if err != nil {
		return nil, err
	}
	return &Tree[T]{
		name:    o.name,
		ph:      ph,
		scalar:  s,
		index:   o.index,
		traits:  pt,
		kernels: ks,
	}, nil
}

// Name returns the launch name.
func (t *Tree[T]) Name() string { return t.name }

// Len returns the number of nodes in the arena.
func (t *Tree[T]) Len() int { return len(t.nodes) }

func (t *Tree[T]) push(n node[T]) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree[T]) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Kind returns the kind of node id.
func (t *Tree[T]) Kind(id NodeID) NodeKind { return t.nodes[id].kind }

// Size returns the logical extent of node id. Scalars have size 1 and
// broadcast.
func (t *Tree[T]) Size(id NodeID) int { return t.nodes[id].size }

// Children returns the operands of node id.
func (t *Tree[T]) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].args...)
}

// Leaf adds a view leaf.
func (t *Tree[T]) Leaf(v View[T]) NodeID {
	return t.push(node[T]{kind: LeafView, view: v, size: v.Size()})
}

// Scalar adds a broadcast scalar leaf.
func (t *Tree[T]) Scalar(x T) NodeID {
	return t.push(node[T]{kind: LeafScalar, scalar: x, size: 1})
}

// broadcastOnly reports whether node id reads no view.
func (t *Tree[T]) broadcastOnly(id NodeID) bool {
	n := t.nodes[id]
	switch n.kind {
	case LeafScalar:
		return true
	case Elementwise:
		for _, a := range n.args {
			if !t.broadcastOnly(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Expr adds an elementwise node applying op to operands. The extent is the
// common extent of the non-scalar operands.
func (t *Tree[T]) Expr(op compute.Op, operands ...NodeID) (NodeID, error) {
	if !op.Valid() {
		return -1, NewInvalidArgError(t.name, fmt.Sprintf("unknown functor %v", op))
	}
	if len(operands) != op.Arity() {
		return -1, NewInvalidArgError(t.name,
			fmt.Sprintf("%v takes %d operands, got %d", op, op.Arity(), len(operands)))
	}
	if c, ok := op.Capability(); ok && !t.traits.Has(c) {
		return -1, NewUnsupportedError(t.name,
			fmt.Sprintf("%v on %s is not supported by %s device", op, t.scalar, t.ph.dev.Kind))
	}
	size := -1
	for _, id := range operands {
		if !t.valid(id) {
			return -1, NewInvalidArgError(t.name, fmt.Sprintf("unknown node %d", id))
		}
		if t.nodes[id].kind == Reduction {
			return -1, NewInvalidArgError(t.name, "a reduction cannot be an operand")
		}
		if t.broadcastOnly(id) {
			continue
		}
		switch n := t.nodes[id].size; {
		case size < 0:
			size = n
		case n != size:
			return -1, NewSizeMismatchError(t.name, size, n)
		}
	}
	if size < 0 {
		size = 1
	}
	return t.push(node[T]{
		kind: Elementwise,
		op:   op,
		args: append([]NodeID(nil), operands...),
		size: size,
	}), nil
}

// Make is the generic node builder. For ShapeElementwise, functor is a
// compute.Op. For ShapeReduction, functor is a compute.ReduceOp and the
// first operand is the destination view (View[T] for scalar reductions,
// View[compute.IndexValue[T]] for index reductions); the reduction becomes
// the tree's root. Other operands may be NodeIDs, View[T]s or T values.
func (t *Tree[T]) Make(shape Shape, functor any, operands ...any) (NodeID, error) {
	switch shape {
	case ShapeElementwise:
		op, ok := functor.(compute.Op)
		if !ok {
			return -1, NewInvalidArgError(t.name, fmt.Sprintf("elementwise functor must be compute.Op, got %T", functor))
		}
		ids, err := t.operands(operands)
		if err != nil {
			return -1, err
		}
		return t.Expr(op, ids...)
	case ShapeReduction:
		op, ok := functor.(compute.ReduceOp)
		if !ok {
			return -1, NewInvalidArgError(t.name, fmt.Sprintf("reduction functor must be compute.ReduceOp, got %T", functor))
		}
		if len(operands) != 2 {
			return -1, NewInvalidArgError(t.name, "a reduction takes a destination and a source")
		}
		src, err := t.operands(operands[1:])
		if err != nil {
			return -1, err
		}
		switch dst := operands[0].(type) {
		case View[T]:
			if err := t.Reduce(op, dst, src[0]); err != nil {
				return -1, err
			}
		case View[compute.IndexValue[T]]:
			if err := t.ReduceIndex(op, dst, src[0]); err != nil {
				return -1, err
			}
		default:
			return -1, NewInvalidArgError(t.name, fmt.Sprintf("bad reduction destination %T", operands[0]))
		}
		return t.root.red, nil
	}
	return -1, NewInvalidArgError(t.name, fmt.Sprintf("unknown shape %d", shape))
}

func (t *Tree[T]) operands(in []any) ([]NodeID, error) {
	ids := make([]NodeID, len(in))
	for i, o := range in {
		switch v := o.(type) {
		case NodeID:
			ids[i] = v
		case View[T]:
			ids[i] = t.Leaf(v)
		case T:
			ids[i] = t.Scalar(v)
		default:
			return nil, NewInvalidArgError(t.name, fmt.Sprintf("unsupported operand %T", o))
		}
	}
	return ids, nil
}

func (t *Tree[T]) setRoot(r root[T]) error {
	if t.root.kind != rootNone {
		return NewInvalidArgError(t.name, "tree already has a root")
	}
	t.root = r
	return nil
}

func (t *Tree[T]) checkSource(dst int, src NodeID) error {
	if !t.valid(src) {
		return NewInvalidArgError(t.name, fmt.Sprintf("unknown node %d", src))
	}
	if t.nodes[src].kind == Reduction {
		return NewInvalidArgError(t.name, "a reduction cannot be assigned")
	}
	if n := t.nodes[src].size; n != dst && !t.broadcastOnly(src) {
		return NewSizeMismatchError(t.name, dst, n)
	}
	return nil
}

// Assign makes dst[i] = src(i) the root.
func (t *Tree[T]) Assign(dst View[T], src NodeID) error {
	if err := t.checkSource(dst.Size(), src); err != nil {
		return err
	}
	return t.setRoot(root[T]{kind: rootAssign, dst: [2]View[T]{dst}, src: [2]NodeID{src}})
}

// Assign2 makes the paired assignment dst1[i] = src1(i), dst2[i] = src2(i)
// the root. Both sources are read before either destination is written at
// each index.
func (t *Tree[T]) Assign2(dst1 View[T], src1 NodeID, dst2 View[T], src2 NodeID) error {
	if dst1.Size() != dst2.Size() {
		return NewSizeMismatchError(t.name, dst1.Size(), dst2.Size())
	}
	if err := t.checkSource(dst1.Size(), src1); err != nil {
		return err
	}
	if err := t.checkSource(dst2.Size(), src2); err != nil {
		return err
	}
	return t.setRoot(root[T]{
		kind: rootAssign2,
		dst:  [2]View[T]{dst1, dst2},
		src:  [2]NodeID{src1, src2},
	})
}

func (t *Tree[T]) reduction(op compute.ReduceOp, src NodeID, dstSize int) (NodeID, error) {
	if !t.valid(src) {
		return -1, NewInvalidArgError(t.name, fmt.Sprintf("unknown node %d", src))
	}
	if t.nodes[src].kind == Reduction {
		return -1, NewInvalidArgError(t.name, "cannot reduce a reduction")
	}
	if dstSize != 1 {
		return -1, NewSizeMismatchError(t.name, 1, dstSize)
	}
	if op == compute.SumAbs && !t.traits.Has(traits.Abs) {
		return -1, NewUnsupportedError(t.name, fmt.Sprintf("abs on %s is not supported", t.scalar))
	}
	return t.push(node[T]{kind: Reduction, rop: op, args: []NodeID{src}, size: 1}), nil
}

// Reduce folds src with op (Sum, Product or SumAbs) into the single
// element of dst and makes that the root.
func (t *Tree[T]) Reduce(op compute.ReduceOp, dst View[T], src NodeID) error {
	if op.Indexed() || op < compute.Sum || op > compute.MinIndex {
		return NewInvalidArgError(t.name, fmt.Sprintf("%v is not a scalar reduction", op))
	}
	if t.root.kind != rootNone {
		return NewInvalidArgError(t.name, "tree already has a root")
	}
	red, err := t.reduction(op, src, dst.Size())
	if err != nil {
		return err
	}
	return t.setRoot(root[T]{kind: rootReduce, dst: [2]View[T]{dst}, src: [2]NodeID{src}, red: red})
}

// ReduceIndex writes the index and value of the element of src with the
// largest (MaxIndex) or smallest (MinIndex) magnitude into dst. Ties go to
// the lowest logical index.
func (t *Tree[T]) ReduceIndex(op compute.ReduceOp, dst View[compute.IndexValue[T]], src NodeID) error {
	if !op.Indexed() {
		return NewInvalidArgError(t.name, fmt.Sprintf("%v is not an index reduction", op))
	}
	if t.root.kind != rootNone {
		return NewInvalidArgError(t.name, "tree already has a root")
	}
	if t.valid(src) && int64(t.nodes[src].size) > t.index.Max() {
		return NewInvalidArgError(t.name,
			fmt.Sprintf("extent %d overflows %s indices", t.nodes[src].size, t.index))
	}
	red, err := t.reduction(op, src, dst.Size())
	if err != nil {
		return err
	}
	return t.setRoot(root[T]{kind: rootReduceIndex, src: [2]NodeID{src}, red: red, idst: dst})
}

// Contract makes c = alpha*a*b + beta*c the root, evaluated per tile of c.
// Every element of c is the Sum reduction of the elementwise product of a
// row leaf of a and a column leaf of b; the kernel rebinds both leaves for
// each element.
func (t *Tree[T]) Contract(c, a, b Matrix[T], alpha, beta T) error {
	m, n := c.Dims()
	am, k := a.Dims()
	bk, bn := b.Dims()
	if am != m {
		return NewSizeMismatchError(t.name, m, am)
	}
	if bn != n {
		return NewSizeMismatchError(t.name, n, bn)
	}
	if bk != k {
		return NewSizeMismatchError(t.name, k, bk)
	}
	if t.root.kind != rootNone {
		return NewInvalidArgError(t.name, "tree already has a root")
	}
	if !t.traits.Has(traits.Add) {
		return NewUnsupportedError(t.name, fmt.Sprintf("%v on %s is not supported", traits.Add, t.scalar))
	}
	row := t.Leaf(a.Row(0))
	col := t.Leaf(b.Col(0))
	prod, err := t.Expr(compute.OpMul, row, col)
	if err != nil {
		return err
	}
	red, err := t.reduction(compute.Sum, prod, 1)
	if err != nil {
		return err
	}
	return t.setRoot(root[T]{
		kind:  rootContract,
		src:   [2]NodeID{row, col},
		red:   red,
		c:     c,
		a:     a,
		b:     b,
		alpha: alpha,
		beta:  beta,
	})
}

// accesses lists the buffers the root reads and writes.
func (t *Tree[T]) accesses() []BufferAccess {
	var out []BufferAccess
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := t.nodes[id]
		if n.kind == LeafView {
			out = append(out, Read(n.view))
		}
		for _, a := range n.args {
			walk(a)
		}
	}
	r := t.root
	switch r.kind {
	case rootAssign:
		walk(r.src[0])
		out = append(out, Write(r.dst[0]))
	case rootAssign2:
		walk(r.src[0])
		walk(r.src[1])
		out = append(out, Write(r.dst[0]), Write(r.dst[1]))
	case rootReduce:
		walk(r.red)
		out = append(out, Write(r.dst[0]))
	case rootReduceIndex:
		walk(r.red)
		out = append(out, Write(r.idst))
	case rootContract:
		walk(r.red)
		out = append(out, Write(r.c.buf))
	}
	return out
}

// released returns the first buffer of the statement that has been
// deallocated since the tree was built.
func (t *Tree[T]) released() (string, bool) {
	for _, n := range t.nodes {
		if n.kind == LeafView && n.view.buf.Released() {
			return n.view.buf.String(), true
		}
	}
	r := t.root
	switch r.kind {
	case rootAssign, rootAssign2, rootReduce:
		for _, d := range r.dst {
			if d.buf != nil && d.buf.Released() {
				return d.buf.String(), true
			}
		}
	case rootReduceIndex:
		if r.idst.buf.Released() {
			return r.idst.buf.String(), true
		}
	case rootContract:
		if r.c.buf.Released() {
			return r.c.buf.String(), true
		}
	}
	return "", false
}
