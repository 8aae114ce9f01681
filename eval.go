package gudablas

import (
	"context"
	"fmt"
	"slices"

	"github.com/LynnColeArt/gudablas/compute"
)

// Statement is a built tree ready for an Executor.
type Statement interface {
	Name() string
	lower(ex *Executor) (*launch, error)
}

// launch is a lowered statement: the buffers it touches and the work to run
// on the queue once its dependencies complete.
type launch struct {
	name     string
	accesses []BufferAccess
	extent   int
	run      func(env kernelEnv) error
}

// elementTemplate is a compiled operand whose row and column leaves read
// through row and col, so one compilation serves every element of a tile.
type elementTemplate[T compute.Scalar] struct {
	op   compute.ReduceOp
	eval func(int) T
	row  *View[T]
	col  *View[T]
}

// template compiles the contraction operand with fresh leaf bindings.
func (t *Tree[T]) template() elementTemplate[T] {
	r := t.root
	red := t.nodes[r.red]
	row, col := new(View[T]), new(View[T])
	bound := map[NodeID]*View[T]{r.src[0]: row, r.src[1]: col}
	return elementTemplate[T]{
		op:   red.rop,
		eval: t.compileBound(red.args[0], bound),
		row:  row,
		col:  col,
	}
}

// compile turns node id into a per-index evaluation function.
func (t *Tree[T]) compile(id NodeID) func(int) T {
	return t.compileBound(id, nil)
}

// compileBound is compile with the view leaves in bound read through their
// binding at evaluation time.
func (t *Tree[T]) compileBound(id NodeID, bound map[NodeID]*View[T]) func(int) T {
	n := t.nodes[id]
	switch n.kind {
	case LeafView:
		if p, ok := bound[id]; ok {
			return func(i int) T { return p.at(i) }
		}
		v := n.view
		return v.at
	case LeafScalar:
		x := n.scalar
		return func(int) T { return x }
	case Elementwise:
		args := make([]func(int) T, len(n.args))
		for i, a := range n.args {
			args[i] = t.compileBound(a, bound)
		}
		op := n.op
		switch len(args) {
		case 1:
			f := args[0]
			return func(i int) T { return compute.Apply1(op, f(i)) }
		case 2:
			f, g := args[0], args[1]
			return func(i int) T { return compute.Apply2(op, f(i), g(i)) }
		case 3:
			f, g, h := args[0], args[1], args[2]
			return func(i int) T { return compute.Apply3(op, f(i), g(i), h(i)) }
		}
	}
	panic(fmt.Sprintf("gudablas: cannot compile %v node", n.kind))
}

func (t *Tree[T]) lower(ex *Executor) (*launch, error) {
	if ex.ph != t.ph {
		return nil, NewInvalidArgError(t.name, "tree was built for another policy handler")
	}
	if buf, ok := t.released(); ok {
		return nil, NewInvalidArgError(t.name, fmt.Sprintf("%s was released after the tree was built", buf))
	}
	ks := t.kernels
	r := t.root
	l := &launch{name: t.name, accesses: t.accesses()}
	switch r.kind {
	case rootNone:
		return nil, NewInvalidArgError(t.name, "tree has no root")
	case rootAssign:
		dst, src := r.dst[0], t.compile(r.src[0])
		l.extent = dst.Size()
		l.run = func(env kernelEnv) error {
			return ks.assign(env, []View[T]{dst}, []func(int) T{src}, dst.Size())
		}
	case rootAssign2:
		dst := []View[T]{r.dst[0], r.dst[1]}
		src := []func(int) T{t.compile(r.src[0]), t.compile(r.src[1])}
		l.extent = r.dst[0].Size()
		l.run = func(env kernelEnv) error {
			return ks.assign(env, dst, src, l.extent)
		}
	case rootReduce:
		red := t.nodes[r.red]
		src, n, dst := t.compile(red.args[0]), t.nodes[red.args[0]].size, r.dst[0]
		l.extent = n
		l.run = func(env kernelEnv) error {
			v, err := ks.reduce(env, red.rop, src, n)
			if err != nil {
				return err
			}
			dst.set(0, v)
			return nil
		}
	case rootReduceIndex:
		red := t.nodes[r.red]
		src, n, dst := t.compile(red.args[0]), t.nodes[red.args[0]].size, r.idst
		l.extent = n
		l.run = func(env kernelEnv) error {
			v, err := ks.reduceIndex(env, red.rop, src, n)
			if err != nil {
				return err
			}
			dst.set(0, v)
			return nil
		}
	case rootContract:
		// Work-groups compile from a snapshot; the tree may grow after lowering.
		frozen := &Tree[T]{nodes: slices.Clone(t.nodes), root: r}
		m, n := r.c.Dims()
		l.extent = m * n
		l.run = func(env kernelEnv) error {
			return ks.contract(env, r.c, r.a, r.b, r.alpha, r.beta, frozen.template)
		}
	}
	return l, nil
}

// runLaunch adapts a lowered launch to the queue.
func (ex *Executor) runLaunch(l *launch) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return l.run(kernelEnv{
			ctx:        ctx,
			q:          ex.q,
			name:       l.name,
			local:      ex.cfg.LocalSize,
			tile:       ex.cfg.TileSize,
			hostReduce: ex.cfg.HostReduceThreshold,
			log:        ex.log,
		})
	}
}
