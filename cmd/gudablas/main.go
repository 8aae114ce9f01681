// Command gudablas inspects the host device and runs small BLAS workloads
// through the asynchronous executor.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/gudablas"
	"github.com/LynnColeArt/gudablas/traits"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	root := NewCLI()
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// NewCLI builds the command tree.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gudablas",
		Short:         "BLAS on the host CPU driven as an accelerator",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       version(),
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show device, capability and kernel registry information",
		Args:  cobra.NoArgs,
		RunE:  InfoHandler,
	}

	axpyCmd := &cobra.Command{
		Use:   "axpy",
		Short: "Run y = alpha*x + y and check it on the host",
		Args:  cobra.NoArgs,
		RunE:  AxpyHandler,
	}
	axpyCmd.Flags().IntP("size", "n", 1<<20, "Vector length")
	axpyCmd.Flags().Float64("alpha", 2, "Scale factor")
	axpyCmd.Flags().Int("incx", 1, "Stride of x")

	gemmCmd := &cobra.Command{
		Use:   "gemm",
		Short: "Run a double precision GEMM and compare it with gonum",
		Args:  cobra.NoArgs,
		RunE:  GemmHandler,
	}
	gemmCmd.Flags().IntP("m", "m", 256, "Rows of C")
	gemmCmd.Flags().IntP("n", "n", 256, "Columns of C")
	gemmCmd.Flags().IntP("k", "k", 256, "Inner dimension")
	gemmCmd.Flags().Bool("transa", false, "Transpose A")
	gemmCmd.Flags().Bool("transb", false, "Transpose B")

	rootCmd.AddCommand(infoCmd, axpyCmd, gemmCmd)
	return rootCmd
}

func version() string {
	v, _ := gudablas.Version()
	if v == "" {
		return "devel"
	}
	return v
}

func newSession() (*gudablas.PolicyHandler, *gudablas.Executor, error) {
	ph, err := gudablas.NewPolicyHandler(gudablas.ConfigFromEnv())
	if err != nil {
		return nil, nil, err
	}
	return ph, gudablas.NewExecutor(ph), nil
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// InfoHandler prints the bound device, the capability table and the
// registered kernels.
func InfoHandler(cmd *cobra.Command, args []string) error {
	ph, _, err := newSession()
	if err != nil {
		return err
	}
	defer ph.Close()

	dev := ph.Device()
	cfg := ph.Config()
	fmt.Printf("Device:    %s\n", dev.Name)
	fmt.Printf("Cores:     %d\n", dev.NumCores)
	fmt.Printf("Memory:    %d MiB\n", dev.TotalMem>>20)
	fmt.Printf("Features:  %s (%d-byte vectors)\n", dev.Features, dev.Features.VectorBytes())
	fmt.Printf("Local:     %d (tile %d, %d workers)\n\n", cfg.LocalSize, cfg.TileSize, cfg.Workers)

	header := []string{"CAPABILITY"}
	scalars := []traits.ScalarType{traits.Float32, traits.Float64}
	pts := make([]traits.PacketTraits, len(scalars))
	for i, s := range scalars {
		pts[i] = dev.Traits(s)
		header = append(header, fmt.Sprintf("%s x%d", s, pts[i].Size))
	}
	table := newTable(header...)
	supported := []string{"supported"}
	for _, pt := range pts {
		supported = append(supported, strconv.FormatBool(pt.Supported))
	}
	table.Append(supported)
	for _, c := range traits.Capabilities() {
		row := []string{c.String()}
		for _, pt := range pts {
			row = append(row, strconv.FormatBool(pt.Has(c)))
		}
		table.Append(row)
	}
	table.Render()

	fmt.Println()
	kernels := newTable("SCALAR", "INDEX")
	for _, r := range gudablas.Registered() {
		kernels.Append([]string{r[0], r[1]})
	}
	kernels.Render()
	return nil
}

// AxpyHandler runs one Axpy over random data and reports the worst error
// against a host evaluation.
func AxpyHandler(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("size")
	alpha, _ := cmd.Flags().GetFloat64("alpha")
	incx, _ := cmd.Flags().GetInt("incx")
	if n < 0 || incx < 1 {
		return fmt.Errorf("invalid size %d or incx %d", n, incx)
	}

	ph, ex, err := newSession()
	if err != nil {
		return err
	}
	defer ph.Close()

	x := make([]float64, max(1, 1+(n-1)*incx))
	y := make([]float64, n)
	for i := range x {
		x[i] = rand.NormFloat64()
	}
	for i := range y {
		y[i] = rand.NormFloat64()
	}
	want := make([]float64, n)
	for i := range want {
		want[i] = alpha*x[i*incx] + y[i]
	}

	xb, err := gudablas.Allocate[float64](ph, len(x))
	if err != nil {
		return err
	}
	defer gudablas.Deallocate(ph, xb)
	yb, err := gudablas.Allocate[float64](ph, len(y))
	if err != nil {
		return err
	}
	defer gudablas.Deallocate(ph, yb)

	start := time.Now()
	if _, err := gudablas.CopyToDevice(ph, x, xb, 0); err != nil {
		return err
	}
	if _, err := gudablas.CopyToDevice(ph, y, yb, 0); err != nil {
		return err
	}
	if _, err := gudablas.Axpy(ex, n, alpha, xb, incx, yb, 1); err != nil {
		return err
	}
	done, err := gudablas.CopyToHost(ph, yb, y, 0)
	if err != nil {
		return err
	}
	if err := ex.WaitContext(cmd.Context(), done); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("axpy n=%d incx=%d: %v, max error %g\n", n, incx, elapsed, maxAbsDiff(want, y))
	return nil
}

// GemmHandler runs one column-major Dgemm and compares it with gonum's.
func GemmHandler(cmd *cobra.Command, args []string) error {
	m, _ := cmd.Flags().GetInt("m")
	n, _ := cmd.Flags().GetInt("n")
	k, _ := cmd.Flags().GetInt("k")
	ta, _ := cmd.Flags().GetBool("transa")
	tb, _ := cmd.Flags().GetBool("transb")
	if m < 1 || n < 1 || k < 1 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", m, n, k)
	}

	transA, transB := blas.NoTrans, blas.NoTrans
	// Stored extents of A and B in column-major order.
	ar, ac, br, bc := m, k, k, n
	if ta {
		transA, ar, ac = blas.Trans, k, m
	}
	if tb {
		transB, br, bc = blas.Trans, n, k
	}

	a := randomSlice(ar * ac)
	b := randomSlice(br * bc)
	c := randomSlice(m * n)
	want := append([]float64(nil), c...)
	const alpha, beta = 1.5, 0.5

	// Column-major C = op(A) op(B) is row-major C^T = op(B)^T op(A)^T.
	blas64.Implementation().Dgemm(transB, transA, n, m, k, alpha, b, br, a, ar, beta, want, m)

	ph, ex, err := newSession()
	if err != nil {
		return err
	}
	defer ph.Close()

	ab := must(gudablas.MakeBuffer(ph, a))
	bb := must(gudablas.MakeBuffer(ph, b))
	cb := must(gudablas.MakeBuffer(ph, c))

	start := time.Now()
	ev, err := gudablas.Gemm(ex, transA, transB, m, n, k, alpha, ab, ar, bb, br, beta, cb, m)
	if err != nil {
		return err
	}
	if err := ex.WaitContext(cmd.Context(), ev); err != nil {
		return err
	}
	elapsed := time.Since(start)

	gflops := 2 * float64(m) * float64(n) * float64(k) / elapsed.Seconds() / 1e9
	fmt.Printf("gemm %c%c %dx%dx%d: %v (%.2f GFLOPS), max error %g, allclose %v\n",
		transA, transB, m, n, k, elapsed, gflops, maxAbsDiff(want, c),
		floats.EqualApprox(want, c, 1e-9*float64(k)))
	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		klog.Fatal(err)
	}
	return v
}

func randomSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rand.Float64()*2 - 1
	}
	return out
}

func maxAbsDiff(a, b []float64) float64 {
	var worst float64
	for i := range a {
		worst = math.Max(worst, math.Abs(a[i]-b[i]))
	}
	return worst
}
