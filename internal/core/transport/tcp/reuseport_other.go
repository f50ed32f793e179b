//go:build !unix

package tcp

import "syscall"

const reuseportAvailable = false

func reuseControl(_, _ string, _ syscall.RawConn) error { return nil }

func isReuseConflict(error) bool { return false }
