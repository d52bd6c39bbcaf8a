package vm

import "sv39os/defs"

// UserBuffer is a sequence of page-chunked []byte slices spanning one
// user-memory range, mirroring the original's UserBuffer/IntoIter pair
// which iterate a translated_byte_buffer one physical page at a time.
type UserBuffer struct {
	chunks [][]byte
}

// NewUserBuffer translates [va, va+length) in pt into a chunked buffer.
func NewUserBuffer(pt *PageTable, va VA, length int) (*UserBuffer, defs.Err_t) {
	chunks, err := TranslatedByteBuffer(pt, va, length)
	if err != 0 {
		return nil, err
	}
	return &UserBuffer{chunks: chunks}, 0
}

// Len returns the total byte length spanned by the buffer.
func (ub *UserBuffer) Len() int {
	n := 0
	for _, c := range ub.chunks {
		n += len(c)
	}
	return n
}

// Uioread copies from the user buffer into dst, stopping when either is
// exhausted, and returns the number of bytes copied.
func (ub *UserBuffer) Uioread(dst []uint8) int {
	n := 0
	for _, c := range ub.chunks {
		if len(dst) == 0 {
			break
		}
		k := copy(dst, c)
		dst = dst[k:]
		n += k
	}
	return n
}

// Uiowrite copies src into the user buffer, stopping when either is
// exhausted, and returns the number of bytes copied.
func (ub *UserBuffer) Uiowrite(src []uint8) int {
	n := 0
	for _, c := range ub.chunks {
		if len(src) == 0 {
			break
		}
		k := copy(c, src)
		src = src[k:]
		n += k
	}
	return n
}
