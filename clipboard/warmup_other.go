//go:build !linux

package clipboard

const keyboardWarmup = 0
