package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ResourceUsage is a point-in-time sample of the process
type ResourceUsage struct {
	MemoryRSS             uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
	ThreadCount           int32
}

// ResourceMonitor samples the current process
type ResourceMonitor struct {
	process *process.Process
}

// NewResourceMonitor creates a monitor of the current process
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec
	if err != nil {
		return nil, err
	}
	return &ResourceMonitor{process: proc}, nil
}

// Usage returns the current resource usage. Fields that cannot be read on
// this platform stay zero.
func (rm *ResourceMonitor) Usage() ResourceUsage {
	usage := ResourceUsage{GoroutineCount: runtime.NumGoroutine()}
	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}
	usage.ThreadCount, _ = rm.process.NumThreads()
	return usage
}

// Log writes the current usage at debug level, tagged with phase
func (rm *ResourceMonitor) Log(log *zap.Logger, phase string) {
	u := rm.Usage()
	log.Debug("resource usage",
		zap.String("phase", phase),
		zap.Uint64("rss_mb", u.MemoryRSS/1024/1024),
		zap.Uint64("vms_mb", u.MemoryVMS/1024/1024),
		zap.Float64("system_memory_percent", u.SystemMemoryPercent),
		zap.Int("goroutines", u.GoroutineCount),
		zap.Int32("threads", u.ThreadCount))
}
