package gudablas

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/gudablas/compute"
)

// kernelEnv carries what a kernel needs from its launch: the queue to fan
// work-groups out on and the launch geometry settings.
type kernelEnv struct {
	ctx        context.Context
	q          *Queue
	name       string
	local      int
	tile       int
	hostReduce int
	log        klog.Logger
}

// groupRange returns the index range of work-group g.
func groupRange(g, local, n int) (lo, hi int) {
	lo = g * local
	return lo, min(lo+local, n)
}

// assignKernel evaluates every source at each index before writing any
// destination at that index.
func assignKernel[T compute.Scalar](env kernelEnv, dst []View[T], src []func(int) T, n int) error {
	local, groups := env.q.dev.ParallelForSetup(n, env.local)
	env.log.V(2).Info("launch", "kernel", "assign", "launch", env.name, "extent", n, "local", local, "groups", groups)
	return env.q.forGroups(env.ctx, env.name, groups, func(g int) error {
		lo, hi := groupRange(g, local, n)
		vals := make([]T, len(src))
		for i := lo; i < hi; i++ {
			for k, f := range src {
				vals[k] = f(i)
			}
			for k, d := range dst {
				d.set(i, vals[k])
			}
		}
		return nil
	})
}

// partialLocal is the work-group size of the partial passes. It is at
// least 2 so that every pass shrinks the partials.
func partialLocal(local int) int {
	return max(local, 2)
}

// reduceKernel is the two-phase scalar reduction: each work-group folds its
// range into a partial, then partials are reduced again with the same
// geometry until few enough remain to finish on the host.
func reduceKernel[T compute.Scalar](env kernelEnv, op compute.ReduceOp, src func(int) T, n int) (T, error) {
	local, groups := env.q.dev.ParallelForSetup(n, env.local)
	env.log.V(2).Info("launch", "kernel", "reduce", "op", op, "launch", env.name, "extent", n, "local", local, "groups", groups)
	partials := make([]T, groups)
	err := env.q.forGroups(env.ctx, env.name, groups, func(g int) error {
		lo, hi := groupRange(g, local, n)
		acc := compute.Identity[T](op)
		for i := lo; i < hi; i++ {
			acc = compute.Combine(op, acc, compute.Lift(op, src(i)))
		}
		partials[g] = acc
		return nil
	})
	if err != nil {
		return 0, err
	}
	// Partials are already lifted; later phases only combine.
	for len(partials) > env.hostReduce {
		in := partials
		local, groups := env.q.dev.ParallelForSetup(len(in), partialLocal(env.local))
		out := make([]T, groups)
		err := env.q.forGroups(env.ctx, env.name, groups, func(g int) error {
			lo, hi := groupRange(g, local, len(in))
			acc := compute.Identity[T](op)
			for _, p := range in[lo:hi] {
				acc = compute.Combine(op, acc, p)
			}
			out[g] = acc
			return nil
		})
		if err != nil {
			return 0, err
		}
		partials = out
	}
	// Lifting is idempotent on partials.
	return compute.Fold(op, partials), nil
}

// reduceIndexKernel is the two-phase index reduction. Partials carry global
// indices, so every merge breaks ties towards the lowest global index.
func reduceIndexKernel[T compute.Scalar](env kernelEnv, op compute.ReduceOp, src func(int) T, n int) (compute.IndexValue[T], error) {
	local, groups := env.q.dev.ParallelForSetup(n, env.local)
	env.log.V(2).Info("launch", "kernel", "reduceIndex", "op", op, "launch", env.name, "extent", n, "local", local, "groups", groups)
	partials := make([]compute.IndexValue[T], groups)
	err := env.q.forGroups(env.ctx, env.name, groups, func(g int) error {
		lo, hi := groupRange(g, local, n)
		vals := make([]T, hi-lo)
		for i := range vals {
			vals[i] = src(lo + i)
		}
		partials[g] = compute.FoldIndex(op, vals, int64(lo))
		return nil
	})
	if err != nil {
		return compute.NoIndex[T](), err
	}
	for len(partials) > env.hostReduce {
		in := partials
		local, groups := env.q.dev.ParallelForSetup(len(in), partialLocal(env.local))
		out := make([]compute.IndexValue[T], groups)
		err := env.q.forGroups(env.ctx, env.name, groups, func(g int) error {
			lo, hi := groupRange(g, local, len(in))
			out[g] = compute.MergeIndex(op, in[lo:hi])
			return nil
		})
		if err != nil {
			return compute.NoIndex[T](), err
		}
		partials = out
	}
	return compute.MergeIndex(op, partials), nil
}

// contractKernel computes c = alpha*a*b + beta*c one tile of c per
// work-group. Each work-group takes its own instance of the element
// template, binds row i of a and column j of b into its leaves and folds the
// compiled operand over k. When beta is zero c is not read.
func contractKernel[T compute.Scalar](env kernelEnv, c, a, b Matrix[T], alpha, beta T, template func() elementTemplate[T]) error {
	m, n := c.Dims()
	_, k := a.Dims()
	ts := max(env.tile, 1)
	tilesM := (m + ts - 1) / ts
	tilesN := (n + ts - 1) / ts
	env.log.V(2).Info("launch", "kernel", "contract", "launch", env.name, "m", m, "n", n, "k", k, "tile", ts, "groups", tilesM*tilesN)
	return env.q.forGroups(env.ctx, env.name, tilesM*tilesN, func(g int) error {
		el := template()
		ti, tj := g%tilesM, g/tilesM
		for j := tj * ts; j < min((tj+1)*ts, n); j++ {
			*el.col = b.Col(j)
			for i := ti * ts; i < min((ti+1)*ts, m); i++ {
				*el.row = a.Row(i)
				acc := compute.Identity[T](el.op)
				for p := 0; p < k; p++ {
					acc = compute.Combine(el.op, acc, compute.Lift(el.op, el.eval(p)))
				}
				v := alpha * acc
				if beta != 0 {
					v += beta * c.at(i, j)
				}
				c.set(i, j, v)
			}
		}
		return nil
	})
}
