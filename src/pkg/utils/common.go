package utils

func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

type WithUnlock[T any] struct {
	Resource T
	UnlockFn func() error
}

func (w *WithUnlock[T]) Unlock() error {
	if w.UnlockFn != nil {
		return w.UnlockFn()
	}

	return nil
}

// Chunks splits [0, n) into consecutive half-open ranges of at most size elements.
func Chunks(n, size int) [][2]int {
	if size <= 0 {
		size = max(n, 1)
	}

	res := make([][2]int, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		res = append(res, [2]int{lo, min(lo+size, n)})
	}

	return res
}
