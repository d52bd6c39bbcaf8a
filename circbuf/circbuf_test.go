package circbuf

import "testing"

func TestCopyinCopyoutRoundTrip(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(8)

	n := cb.Copyin([]byte("hello"))
	if n != 5 {
		t.Fatalf("Copyin = %d, want 5", n)
	}
	if cb.Used() != 5 {
		t.Fatalf("Used = %d, want 5", cb.Used())
	}

	out := make([]byte, 5)
	n = cb.Copyout(out)
	if n != 5 || string(out) != "hello" {
		t.Fatalf("Copyout = %d,%q, want 5,hello", n, out)
	}
	if !cb.Empty() {
		t.Fatal("expected buffer to be empty after full drain")
	}
}

func TestCopyinStopsAtCapacity(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(4)
	n := cb.Copyin([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("Copyin = %d, want 4 (capacity)", n)
	}
	if !cb.Full() {
		t.Fatal("expected buffer to report full")
	}
}

func TestWraparound(t *testing.T) {
	var cb Circbuf_t
	cb.Cb_init(4)
	cb.Copyin([]byte("ab"))
	out := make([]byte, 2)
	cb.Copyout(out)
	cb.Copyin([]byte("cd"))
	cb.Copyin([]byte("ef")) // wraps past the ring's physical end

	rest := make([]byte, 4)
	n := cb.Copyout(rest)
	if n != 4 || string(rest) != "cdef" {
		t.Fatalf("Copyout after wrap = %d,%q, want 4,cdef", n, rest)
	}
}
