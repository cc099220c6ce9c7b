package server

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"runtime"
	"time"
)

func (h handlers) sysInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, runtimeInfo())
	}
}

func runtimeInfo() map[string]interface{} {
	memStats := new(runtime.MemStats)
	runtime.ReadMemStats(memStats)

	return map[string]interface{}{
		"time":             time.Now().UnixNano(),
		"go_version":       runtime.Version(),
		"go_os":            runtime.GOOS,
		"go_arch":          runtime.GOARCH,
		"cpu_num":          runtime.NumCPU(),
		"goroutine_num":    runtime.NumGoroutine(),
		"go_max_procs":     runtime.GOMAXPROCS(0),
		"c_go_call_num":    runtime.NumCgoCall(),
		"mem_alloc":        memStats.Alloc,
		"mem_total_alloc":  memStats.TotalAlloc,
		"mem_sys":          memStats.Sys,
		"mem_heap_objects": memStats.HeapObjects,
		"gc_num":           memStats.NumGC,
	}
}
