//go:build !linux

package affinity

func setAffinity(int) error {
	return ErrUnsupported
}

// Current is not available off Linux.
func Current() ([]int, error) {
	return nil, ErrUnsupported
}
