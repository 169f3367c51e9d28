package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SysHealth is a point-in-time view of the process and its data directory.
type SysHealth struct {
	AllocMB      uint64 `json:"alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	Goroutines   int    `json:"goroutines"`
	DataDiskSize string `json:"data_disk_size"`
}

// GetSysHealth collects real-time health data.
func GetSysHealth(dataPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDiskSize: humanSize(dirSize(dataPath)),
	}
}

// Report renders health and recent usage as plain text for admin surfaces.
func Report(health SysHealth, usage []DailyUsage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "System: %d MB heap, %d MB sys, %d goroutines, %d GCs, data %s\n",
		health.AllocMB, health.SysMB, health.Goroutines, health.NumGC, health.DataDiskSize)
	if len(usage) == 0 {
		b.WriteString("No executions recorded.\n")
		return b.String()
	}
	for _, u := range usage {
		fmt.Fprintf(&b, "%s: %d runs (%d failed), %d plan days, %d flagged, %d/%d tokens\n",
			u.Date, u.TotalExecution, u.Failures, u.PlanDays, u.FlaggedDays, u.TotalPrompt, u.TotalCompletion)
	}
	return b.String()
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
