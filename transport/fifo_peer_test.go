//go:build !windows

package transport

import (
	"os"
	"testing"
)

// fifoPeer simulates the debuggee side of the POSIX FIFO transport: it
// opens InPipe for writing and OutPipe for reading, the mirror image of
// what the engine side does.
type fifoPeer struct {
	w *os.File
	r *os.File
}

func dialFIFOPeer(t *testing.T, inPath, outPath string) (*fifoPeer, error) {
	t.Helper()
	w, err := os.OpenFile(inPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	r, err := os.OpenFile(outPath, os.O_RDONLY, 0)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &fifoPeer{w: w, r: r}, nil
}

func (p *fifoPeer) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *fifoPeer) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *fifoPeer) Close() error {
	err1 := p.w.Close()
	err2 := p.r.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
