package defs

// Syscall numbers, matching the ABI of the user binaries this kernel
// boots: x17 (a7) carries the number below, x10-x13 (a0-a3) carry up to
// four arguments, and the return value is written back into x10.
const (
	SYS_DUP       = 24
	SYS_OPEN      = 56
	SYS_CLOSE     = 57
	SYS_READ      = 63
	SYS_WRITE     = 64
	SYS_LINKAT    = 37
	SYS_UNLINKAT  = 35
	SYS_FSTAT     = 80
	SYS_EXIT      = 93
	SYS_YIELD     = 124
	SYS_SET_PRIO  = 140
	SYS_GET_TIME  = 169
	SYS_GETPID    = 172
	SYS_MUNMAP    = 215
	SYS_FORK      = 220
	SYS_EXEC      = 221
	SYS_WAITPID   = 260
	SYS_MMAP      = 222
	SYS_SPAWN     = 400
	SYS_TASK_INFO = 410
)

// Open flags, as decoded by sys_open.
const (
	O_RDONLY = 0
	O_WRONLY = 1 << 0
	O_RDWR   = 1 << 1
	O_CREATE = 1 << 9
	O_TRUNC  = 1 << 10
)
