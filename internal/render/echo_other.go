//go:build !linux

package render

func disableInputEcho(fd int) (func(), error) {
	return nil, nil
}
