package proxy

import (
	"io"
	"net"
	"sync"
)

// Pipe copies bytes in both directions between a and b until either side's
// read returns EOF or an error, then half-closes (or fully closes, if the
// conn has no CloseWrite) the other side so the opposite direction can
// drain. It blocks until both directions have finished. Exported so other
// packages (e.g. tunnel) needing the same bidirectional relay don't have to
// reimplement it.
func Pipe(a, b net.Conn) {
	pipe(a, b)
}

func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		copyHalf(b, a)
	}()
	go func() {
		defer wg.Done()
		copyHalf(a, b)
	}()

	wg.Wait()
}

func copyHalf(dst, src net.Conn) {
	_, _ = io.Copy(dst, src)
	closeWrite(dst)
}

// closeWrite half-closes dst for writes if it supports it, otherwise closes
// it outright.
func closeWrite(c net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := c.(writeCloser); ok {
		_ = wc.CloseWrite()
		return
	}
	_ = c.Close()
}
