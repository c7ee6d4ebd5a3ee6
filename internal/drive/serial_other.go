//go:build !linux

package drive

import "errors"

func openPort(string) (port, error) {
	return nil, errors.New("serial drive control is only supported on linux")
}
