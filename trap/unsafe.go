package trap

import "unsafe"

// bytesAsTrapContext reinterprets a page's backing bytes as a
// *TrapContext in place, the same unsafe-pointer trick
// sv39os/util.Readn/Writen use for the on-disk inode layout.
func bytesAsTrapContext(frame []byte) unsafe.Pointer {
	if len(frame) < int(unsafe.Sizeof(TrapContext{})) {
		panic("trap: frame too small for a TrapContext")
	}
	return unsafe.Pointer(&frame[0])
}
