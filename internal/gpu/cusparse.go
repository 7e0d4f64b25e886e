//go:build cuda

package gpu

/*
#cgo LDFLAGS: -lcusparse -lcudart
#include <stdlib.h>
#include <string.h>
#include <cuda_runtime.h>
#include <cusparse.h>

static const char* cudaErrStr(cudaError_t e) { return cudaGetErrorString(e); }

typedef struct {
    int device;
    cusparseHandle_t handle;
} gpu_ctx;

static const char* gpu_open(int device, gpu_ctx* ctx, int* maxThreads, char* name, int nameLen) {
    int count = 0;
    cudaError_t ce = cudaGetDeviceCount(&count);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    if (device >= count) return "device index out of range";
    ce = cudaSetDevice(device);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    struct cudaDeviceProp prop;
    ce = cudaGetDeviceProperties(&prop, device);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    *maxThreads = prop.maxThreadsPerBlock;
    strncpy(name, prop.name, nameLen - 1);
    name[nameLen - 1] = 0;
    if (cusparseCreate(&ctx->handle) != CUSPARSE_STATUS_SUCCESS) return "cusparseCreate failed";
    ctx->device = device;
    return NULL;
}

// The CUDA current device is per host thread and goroutines migrate between
// threads, so every entry point selects ctx->device first.
static const char* gpu_use(gpu_ctx* ctx) {
    cudaError_t ce = cudaSetDevice(ctx->device);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

static void gpu_close(gpu_ctx* ctx) {
    if (gpu_use(ctx) == NULL) cusparseDestroy(ctx->handle);
}

static const char* gpu_alloc(gpu_ctx* ctx, size_t n, void** p) {
    const char* err = gpu_use(ctx);
    if (err) return err;
    cudaError_t ce = cudaMalloc(p, n > 0 ? n : 1);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

static const char* gpu_free(gpu_ctx* ctx, void* p) {
    const char* err = gpu_use(ctx);
    if (err) return err;
    cudaError_t ce = cudaFree(p);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

static const char* gpu_h2d(gpu_ctx* ctx, void* dst, const void* src, size_t n) {
    if (n == 0) return NULL;
    const char* err = gpu_use(ctx);
    if (err) return err;
    cudaError_t ce = cudaMemcpy(dst, src, n, cudaMemcpyHostToDevice);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

static const char* gpu_d2h(gpu_ctx* ctx, void* dst, const void* src, size_t n) {
    if (n == 0) return NULL;
    const char* err = gpu_use(ctx);
    if (err) return err;
    cudaError_t ce = cudaMemcpy(dst, src, n, cudaMemcpyDeviceToHost);
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

static const char* gpu_sync(gpu_ctx* ctx) {
    const char* err = gpu_use(ctx);
    if (err) return err;
    cudaError_t ce = cudaDeviceSynchronize();
    if (ce != cudaSuccess) return cudaErrStr(ce);
    return NULL;
}

// y = 1*A*x + 1*y
static const char* gpu_spmv_csr(gpu_ctx* ctx, int rows, int cols, int nnz,
                                void* ap, void* aj, void* ax, void* x, void* y) {
    cusparseSpMatDescr_t A;
    cusparseDnVecDescr_t vx, vy;
    const float alpha = 1.0f, beta = 1.0f;
    size_t bufSize = 0;
    void* buf = NULL;
    const char* err = gpu_use(ctx);
    if (err) return err;
    if (cusparseCreateCsr(&A, rows, cols, nnz, ap, aj, ax,
                          CUSPARSE_INDEX_32I, CUSPARSE_INDEX_32I,
                          CUSPARSE_INDEX_BASE_ZERO, CUDA_R_32F) != CUSPARSE_STATUS_SUCCESS)
        return "cusparseCreateCsr failed";
    if (cusparseCreateDnVec(&vx, cols, x, CUDA_R_32F) != CUSPARSE_STATUS_SUCCESS) {
        cusparseDestroySpMat(A);
        return "cusparseCreateDnVec(x) failed";
    }
    if (cusparseCreateDnVec(&vy, rows, y, CUDA_R_32F) != CUSPARSE_STATUS_SUCCESS) {
        cusparseDestroyDnVec(vx);
        cusparseDestroySpMat(A);
        return "cusparseCreateDnVec(y) failed";
    }
    if (cusparseSpMV_bufferSize(ctx->handle, CUSPARSE_OPERATION_NON_TRANSPOSE, &alpha, A, vx, &beta, vy,
                                CUDA_R_32F, CUSPARSE_SPMV_CSR_ALG1, &bufSize) != CUSPARSE_STATUS_SUCCESS) {
        err = "cusparseSpMV_bufferSize failed";
        goto done;
    }
    if (bufSize > 0 && cudaMalloc(&buf, bufSize) != cudaSuccess) {
        err = "cudaMalloc(spmv workspace) failed";
        goto done;
    }
    if (cusparseSpMV(ctx->handle, CUSPARSE_OPERATION_NON_TRANSPOSE, &alpha, A, vx, &beta, vy,
                     CUDA_R_32F, CUSPARSE_SPMV_CSR_ALG1, buf) != CUSPARSE_STATUS_SUCCESS)
        err = "cusparseSpMV failed";
done:
    if (buf) cudaFree(buf);
    cusparseDestroyDnVec(vy);
    cusparseDestroyDnVec(vx);
    cusparseDestroySpMat(A);
    return err;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/qrv0/spmv/internal/accel"
)

func init() {
	accel.Register(accel.GPU, func(cfg accel.Config) (accel.Device, error) { return Open(cfg) })
}

// DeviceCount returns the number of visible CUDA devices, or 0 when the
// runtime cannot be queried.
func DeviceCount() int {
	var count C.int
	if C.cudaGetDeviceCount(&count) != C.cudaSuccess {
		return 0
	}
	return int(count)
}

// Available reports whether a CUDA device can be opened.
func Available() bool { return DeviceCount() > 0 }

type devBuffer struct {
	ptr   unsafe.Pointer
	size  uint64
	flags accel.MemFlags
}

type kernel struct{ name string }

func (k *kernel) Name() string { return k.name }

// Device is a CUDA device. The CSR kernel is served by cuSPARSE, which picks
// its own launch geometry; the partition is still validated against the
// device's thread limit.
type Device struct {
	ctx  C.gpu_ctx
	info accel.Info

	mu       sync.Mutex
	mem      map[accel.Ptr]*devBuffer
	next     accel.Ptr
	released bool
}

func cerr(s *C.char) error {
	if s == nil {
		return nil
	}
	return errors.New(C.GoString(s))
}

func Open(cfg accel.Config) (*Device, error) {
	d := &Device{mem: make(map[accel.Ptr]*devBuffer), next: 1}
	var maxThreads C.int
	name := make([]byte, 256)
	if err := cerr(C.gpu_open(C.int(cfg.Index), &d.ctx, &maxThreads, (*C.char)(unsafe.Pointer(&name[0])), C.int(len(name)))); err != nil {
		return nil, &accel.ResourceError{Op: fmt.Sprintf("open gpu %d", cfg.Index), Err: err}
	}
	d.info = accel.Info{
		Name:         C.GoString((*C.char)(unsafe.Pointer(&name[0]))),
		Type:         accel.GPU,
		Index:        cfg.Index,
		MaxGroupSize: int(maxThreads),
	}
	return d, nil
}

func (d *Device) Info() accel.Info { return d.info }

func (d *Device) Allocate(size uint64, flags accel.MemFlags) (accel.Ptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return 0, &accel.ResourceError{Op: "allocate", Err: accel.ErrReleased}
	}
	var p unsafe.Pointer
	if err := cerr(C.gpu_alloc(&d.ctx, C.size_t(size), &p)); err != nil {
		return 0, &accel.ResourceError{Op: fmt.Sprintf("allocate %d bytes", size), Err: err}
	}
	h := d.next
	d.next++
	d.mem[h] = &devBuffer{ptr: p, size: size, flags: flags}
	return h, nil
}

func (d *Device) buffer(p accel.Ptr) (*devBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, accel.ErrReleased
	}
	b, ok := d.mem[p]
	if !ok {
		return nil, fmt.Errorf("%w: %d", accel.ErrUnknownBuffer, p)
	}
	return b, nil
}

func (d *Device) Free(p accel.Ptr) error {
	b, err := d.buffer(p)
	if err != nil {
		return &accel.ResourceError{Op: "free", Err: err}
	}
	d.mu.Lock()
	delete(d.mem, p)
	d.mu.Unlock()
	if err := cerr(C.gpu_free(&d.ctx, b.ptr)); err != nil {
		return &accel.ResourceError{Op: "free", Err: err}
	}
	return nil
}

func (d *Device) CopyH2D(dst accel.Ptr, src []byte) error {
	b, err := d.buffer(dst)
	if err == nil && uint64(len(src)) > b.size {
		err = fmt.Errorf("%d bytes into %d byte buffer", len(src), b.size)
	}
	if err == nil && len(src) > 0 {
		err = cerr(C.gpu_h2d(&d.ctx, b.ptr, unsafe.Pointer(&src[0]), C.size_t(len(src))))
	}
	if err != nil {
		return &accel.TransferError{Op: "h2d", Buffer: fmt.Sprint(dst), Err: err}
	}
	return nil
}

func (d *Device) CopyD2H(dst []byte, src accel.Ptr) error {
	b, err := d.buffer(src)
	if err == nil && uint64(len(dst)) > b.size {
		err = fmt.Errorf("%d bytes from %d byte buffer", len(dst), b.size)
	}
	if err == nil && len(dst) > 0 {
		err = cerr(C.gpu_d2h(&d.ctx, unsafe.Pointer(&dst[0]), b.ptr, C.size_t(len(dst))))
	}
	if err != nil {
		return &accel.TransferError{Op: "d2h", Buffer: fmt.Sprint(src), Err: err}
	}
	return nil
}

func (d *Device) Build(name string) (accel.Kernel, error) {
	if name != "csr" {
		return nil, &accel.BuildError{
			Kernel: name,
			Log:    fmt.Sprintf("cusparse backend provides kernel 'csr' only, not '%s'", name),
			Err:    errors.New("kernel not found"),
		}
	}
	return &kernel{name: name}, nil
}

func (d *Device) Launch(k accel.Kernel, p accel.Partition, args ...accel.Arg) error {
	fail := func(err error) error { return &accel.DispatchError{Kernel: k.Name(), Err: err} }
	if _, ok := k.(*kernel); !ok {
		return fail(errors.New("kernel was not built by this device"))
	}
	if !p.Covers() || p.LocalSize > d.info.MaxGroupSize {
		return fail(fmt.Errorf("invalid partition %v (max group %d)", p, d.info.MaxGroupSize))
	}
	if len(args) != 6 {
		return fail(fmt.Errorf("want 6 arguments, got %d", len(args)))
	}
	rows, ok := args[0].(uint32)
	if !ok {
		return fail(fmt.Errorf("argument 0 must be uint32, got %T", args[0]))
	}
	bufs := make([]*devBuffer, 5)
	for i := range bufs {
		h, ok := args[i+1].(accel.Ptr)
		if !ok {
			return fail(fmt.Errorf("argument %d must be a device buffer, got %T", i+1, args[i+1]))
		}
		b, err := d.buffer(h)
		if err != nil {
			return fail(err)
		}
		bufs[i] = b
	}
	if bufs[4].flags&accel.MemReadWrite == 0 {
		return fail(errors.New("y buffer is not writable"))
	}
	nnz := bufs[1].size / 4
	cols := bufs[3].size / 4
	err := cerr(C.gpu_spmv_csr(&d.ctx, C.int(rows), C.int(cols), C.int(nnz),
		bufs[0].ptr, bufs[1].ptr, bufs[2].ptr, bufs[3].ptr, bufs[4].ptr))
	if err != nil {
		return fail(err)
	}
	return nil
}

func (d *Device) Finish() error {
	if err := cerr(C.gpu_sync(&d.ctx)); err != nil {
		return &accel.DispatchError{Kernel: "finish", Err: err}
	}
	return nil
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	for h, b := range d.mem {
		C.gpu_free(&d.ctx, b.ptr)
		delete(d.mem, h)
	}
	C.gpu_close(&d.ctx)
	d.released = true
	return nil
}
