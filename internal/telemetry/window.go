package telemetry

// window is a fixed-size ring of the most recent values.
type window struct {
	values []float64
	next   int
	count  int
	sum    float64
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{values: make([]float64, size)}
}

func (w *window) push(v float64) float64 {
	if w.count == len(w.values) {
		w.sum -= w.values[w.next]
	} else {
		w.count++
	}

	w.values[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.values)

	return w.sum / float64(w.count)
}

func (w *window) reset() {
	w.next, w.count, w.sum = 0, 0, 0
}
