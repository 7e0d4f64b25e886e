//go:build cuda

package gpu

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/qrv0/spmv/internal/accel"
)

func TestCUDASpMV(t *testing.T) {
	if !Available() {
		t.Skip("CUDA not available on this runner")
	}
	d, err := Open(accel.Config{Type: accel.GPU})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Release()
	if err := checkSpMV(d); err != nil {
		t.Fatal(err)
	}
}

// A device other than 0 must keep working from an OS thread whose CUDA
// current device is something else.
func TestCUDASpMVOnForeignThread(t *testing.T) {
	n := DeviceCount()
	if n < 2 {
		t.Skip("needs at least two CUDA devices")
	}
	d, err := Open(accel.Config{Type: accel.GPU, Index: n - 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Release()

	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		// opening device 0 leaves it current on this thread
		d0, err := Open(accel.Config{Type: accel.GPU, Index: 0})
		if err != nil {
			errc <- fmt.Errorf("open 0: %w", err)
			return
		}
		defer d0.Release()
		errc <- checkSpMV(d)
	}()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
}

// checkSpMV runs [[2 0 0] [0 3 1] [0 0 0]] * [1 1 1] on d.
func checkSpMV(d *Device) error {
	stage := func(b []byte, flags accel.MemFlags) (accel.Ptr, error) {
		p, err := d.Allocate(uint64(len(b)), flags)
		if err != nil {
			return 0, fmt.Errorf("allocate: %w", err)
		}
		if err := d.CopyH2D(p, b); err != nil {
			return 0, fmt.Errorf("h2d: %w", err)
		}
		return p, nil
	}
	var bufs [5]accel.Ptr
	for i, src := range []struct {
		b     []byte
		flags accel.MemFlags
	}{
		{accel.Bytes([]uint32{0, 1, 3, 3}), accel.MemReadOnly},
		{accel.Bytes([]uint32{0, 1, 2}), accel.MemReadOnly},
		{accel.Bytes([]float32{2, 3, 1}), accel.MemReadOnly},
		{accel.Bytes([]float32{1, 1, 1}), accel.MemReadOnly},
		{accel.Bytes([]float32{0, 0, 0}), accel.MemReadWrite},
	} {
		p, err := stage(src.b, src.flags)
		if err != nil {
			return err
		}
		bufs[i] = p
	}

	k, err := d.Build("csr")
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	part := accel.PlanPartition(3, d.Info().MaxGroupSize)
	if err := d.Launch(k, part, uint32(3), bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	if err := d.Finish(); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	out := make([]float32, 3)
	if err := d.CopyD2H(accel.Bytes(out), bufs[4]); err != nil {
		return fmt.Errorf("d2h: %w", err)
	}
	want := []float32{2, 4, 0}
	for i := range want {
		if out[i] != want[i] {
			return fmt.Errorf("y[%d]=%v want %v", i, out[i], want[i])
		}
	}
	return nil
}
