package tensor

import (
	"runtime"
	"sync"
)

// parallelThreshold is the smallest R*C product worth fanning out; smaller
// products finish faster on the calling goroutine.
const parallelThreshold = 1 << 14

type matVecTask struct {
	dst    []float32
	w      *Mat
	x      []float32
	rs, re int
	done   chan struct{}
}

type matVecPool struct {
	size      int
	tasks     chan matVecTask
	doneSlots chan chan struct{}
}

var matVecWorkPool *matVecPool

var matVecPoolOnce sync.Once

func getMatVecPool() *matVecPool {
	matVecPoolOnce.Do(func() {
		matVecWorkPool = newMatVecPool()
	})
	return matVecWorkPool
}

func newMatVecPool() *matVecPool {
	size := max(runtime.GOMAXPROCS(0), 1)
	p := &matVecPool{
		size:      size,
		tasks:     make(chan matVecTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	for range size {
		p.doneSlots <- make(chan struct{}, size)
	}
	for range size {
		go func() {
			for task := range p.tasks {
				matVecRange(task.dst, task.w, task.x, task.rs, task.re)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

// MatVec computes dst = w * x. Large products are split by rows across a
// shared worker pool.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}

	if w.R*w.C < parallelThreshold {
		matVecRange(dst, w, x, 0, w.R)
		return
	}
	pool := getMatVecPool()
	workers := min(pool.size, w.R)
	if workers <= 1 {
		matVecRange(dst, w, x, 0, w.R)
		return
	}

	chunk := (w.R + workers - 1) / workers
	done := <-pool.doneSlots

	active := 0
	for i := range workers {
		rs := i * chunk
		re := min(rs+chunk, w.R)
		if rs >= re {
			break
		}
		active++
		pool.tasks <- matVecTask{dst: dst, w: w, x: x, rs: rs, re: re, done: done}
	}
	for range active {
		<-done
	}
	pool.doneSlots <- done
}

// MatVecAdd computes dst = w * x + b.
func MatVecAdd(dst []float32, w *Mat, x, b []float32) {
	MatVec(dst, w, x)
	Add(dst[:w.R], b)
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	if w.raw() {
		matVecRangeHalf(dst, w, x, rs, re)
		return
	}
	matVecRangeF32(dst, w, x, rs, re)
}

func matVecRangeF32(dst []float32, w *Mat, x []float32, rs, re int) {
	for i := rs; i < re; i++ {
		dst[i] = Dot(w.Data[i*w.Stride:i*w.Stride+w.C], x[:w.C])
	}
}

func matVecRangeHalf(dst []float32, w *Mat, x []float32, rs, re int) {
	for i := rs; i < re; i++ {
		base := i * w.Stride
		if w.C > 0 {
			_ = w.Raw[(base+w.C-1)*2+1]
		}
		var sum float32
		for j := 0; j < w.C; j++ {
			sum += decodeAt(w.DType, w.Raw, base+j) * x[j]
		}
		dst[i] = sum
	}
}
