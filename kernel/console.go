package kernel

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"sv39os/circbuf"
	"sv39os/defs"
)

// Stdin and Stdout are the two console fds every task starts with
// (fd 2 aliases Stdout rather than opening a third, per fd.NewTable),
// mirroring fs/stdio.rs's Stdin/Stdout File impls.
type Stdin struct{}
type Stdout struct{}

// consoleInBufSz is the stdin ring buffer's capacity: the feeder below
// can fill several bytes ahead of the reader. Stdin.Read drains what is
// already buffered without blocking and returns 0 when nothing is
// there; neither it nor sys_read yields or retries until a byte arrives.
const consoleInBufSz = 256

var consoleIn struct {
	sync.Mutex
	cb   circbuf.Circbuf_t
	init bool
}

func ensureConsoleIn() {
	consoleIn.Lock()
	if !consoleIn.init {
		consoleIn.cb.Cb_init(consoleInBufSz)
		consoleIn.init = true
		go feedConsoleIn()
	}
	consoleIn.Unlock()
}

// feedConsoleIn is the SBI console_getchar's stand-in: it blocks on the
// host's stdin and pushes bytes into the ring buffer as they arrive,
// decoupling the (blocking) host read from sys_read's non-blocking
// drain-then-yield loop.
func feedConsoleIn() {
	r := bufio.NewReader(os.Stdin)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		for {
			consoleIn.Lock()
			n := consoleIn.cb.Copyin([]byte{b})
			consoleIn.Unlock()
			if n == 1 {
				break
			}
		}
	}
}

// Read drains up to one byte already buffered from the host's stdin;
// 0 bytes (never an error) means "nothing ready yet", matching
// console_getchar's 0-means-no-byte contract — sys_read's caller spins
// through yield on that, never blocking the kernel itself.
func (Stdin) Read(dst []byte) (int, defs.Err_t) {
	if len(dst) != 1 {
		panic("console: stdin reads are always exactly one byte")
	}
	ensureConsoleIn()
	consoleIn.Lock()
	n := consoleIn.cb.Copyout(dst)
	consoleIn.Unlock()
	return n, 0
}

func (Stdin) Write([]byte) (int, defs.Err_t) { panic("cannot write to stdin") }
func (Stdin) Close() defs.Err_t              { return 0 }
func (Stdin) Reopen() defs.Err_t             { return 0 }
func (Stdin) Stat() (int, bool, uint32, defs.Err_t) { return 0, false, 1, 0 }

func (Stdout) Read([]byte) (int, defs.Err_t) { panic("cannot read from stdout") }

// Write prints directly to the host console, matching Stdout::write's
// per-buffer print!.
func (Stdout) Write(src []byte) (int, defs.Err_t) {
	fmt.Print(string(src))
	return len(src), 0
}

func (Stdout) Close() defs.Err_t                     { return 0 }
func (Stdout) Reopen() defs.Err_t                    { return 0 }
func (Stdout) Stat() (int, bool, uint32, defs.Err_t) { return 0, false, 1, 0 }
