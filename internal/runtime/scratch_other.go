//go:build !linux && !darwin

package runtime

import "errors"

func ramMountSupported() bool { return false }

func freeBytes(string) (uint64, error) { return 0, errors.New("capacity probe unsupported") }

func mountRAM(string, uint64) error { return errors.New("ram scratch unsupported on this platform") }

func unmountRAM(string) error { return nil }
