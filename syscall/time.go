package syscall

import "time"

// bootTime anchors gettimeofday's wall-clock reading to a single
// process-wide instant, the stand-in this port has for the SBI timer's
// free-running counter.
var bootTime = time.Now()

func nowMicros() int {
	return int(time.Since(bootTime).Microseconds())
}
