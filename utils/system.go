package utils

import (
	"fmt"
	"runtime"
)

// GetMemUsage summarises heap use for progress lines.
func GetMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	toMiB := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return fmt.Sprintf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
		toMiB(m.Alloc), toMiB(m.TotalAlloc), toMiB(m.Sys), m.NumGC)
}
