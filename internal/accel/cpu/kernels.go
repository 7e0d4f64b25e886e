package cpu

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qrv0/spmv/internal/accel"
)

type kernel struct {
	name string
	// bind resolves the launch arguments once and returns the work item body.
	bind func(d *Device, args []accel.Arg) (func(gid int), error)
}

func (k *kernel) Name() string { return k.name }

var kernels = map[string]*kernel{
	"csr": {name: "csr", bind: bindCSR},
}

func kernelNames() string {
	names := make([]string, 0, len(kernels))
	for n := range kernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// bindCSR binds (num_rows, row_ptr, col_idx, values, x, y). Work item r
// computes y[r] += sum(values[k]*x[col_idx[k]]) over row r.
func bindCSR(d *Device, args []accel.Arg) (func(gid int), error) {
	if len(args) != 6 {
		return nil, fmt.Errorf("csr: want 6 arguments, got %d", len(args))
	}
	numRows, ok := args[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("csr: argument 0 must be uint32, got %T", args[0])
	}
	bufs := make([]*buffer, 5)
	for i := range bufs {
		p, ok := args[i+1].(accel.Ptr)
		if !ok {
			return nil, fmt.Errorf("csr: argument %d must be a device buffer, got %T", i+1, args[i+1])
		}
		b, err := d.lookup(p)
		if err != nil {
			return nil, fmt.Errorf("csr: argument %d: %w", i+1, err)
		}
		bufs[i] = b
	}
	if bufs[4].flags&accel.MemReadWrite == 0 {
		return nil, fmt.Errorf("csr: y buffer is not writable")
	}

	n := int(numRows)
	rowPtr := accel.View[uint32](bufs[0].data)
	colIdx := accel.View[uint32](bufs[1].data)
	values := accel.View[float32](bufs[2].data)
	x := accel.View[float32](bufs[3].data)
	y := accel.View[float32](bufs[4].data)
	if len(rowPtr) < n+1 || len(y) < n {
		return nil, fmt.Errorf("csr: buffers too small for %d rows", n)
	}

	return func(row int) {
		if row >= n {
			return
		}
		sum := y[row]
		for k := rowPtr[row]; k < rowPtr[row+1]; k++ {
			sum += values[k] * x[colIdx[k]]
		}
		y[row] = sum
	}, nil
}
