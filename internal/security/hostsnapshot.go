package security

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// GopsutilHostSnapshot samples this process's resident set size via
// github.com/shirou/gopsutil, grounded on go-probeum's own use of the
// same library for host metrics. Purely advisory (see Manager.
// CheckAllocBudget); a failure here never blocks execution.
func GopsutilHostSnapshot() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
