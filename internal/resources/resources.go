// Package resources snapshots the host a pfbatch daemon runs on.
//
// A snapshot combines system figures read through gopsutil (memory, load
// averages) with Go runtime statistics. Snapshots are served by the admin
// API and exchanged between daemons as gossip query responses, so they are
// plain JSON documents.
package resources

import (
	"encoding/json"
	"runtime"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostResources is one resource snapshot of a daemon host.
type HostResources struct {
	NodeID    string    `json:"nodeId"`
	NodeName  string    `json:"nodeName"`
	Timestamp time.Time `json:"timestamp"`

	CPUCores int `json:"cpuCores"`

	// System memory in bytes
	MemoryTotal     uint64  `json:"memoryTotal"`
	MemoryUsed      uint64  `json:"memoryUsed"`
	MemoryAvailable uint64  `json:"memoryAvailable"`
	MemoryUsage     float64 `json:"memoryUsage"`

	// Go runtime
	GoRoutines int     `json:"goRoutines"`
	GoMemAlloc uint64  `json:"goMemAlloc"`
	GoMemSys   uint64  `json:"goMemSys"`
	GoGCCycles uint32  `json:"goGcCycles"`
	GoGCPause  float64 `json:"goGcPause"` // Last pause in milliseconds

	Uptime time.Duration `json:"uptime"`
	Load1  float64       `json:"load1"`
	Load5  float64       `json:"load5"`
	Load15 float64       `json:"load15"`
}

// Gather collects a snapshot. Failing system reads fall back to runtime
// figures (memory) or zeros (load) and are logged.
func Gather(nodeID, nodeName string, startTime time.Time) *HostResources {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		logging.Error("Failed to get system memory stats: %v", err)
		virtualMem = &mem.VirtualMemoryStat{
			Total:     memStats.Sys,
			Used:      memStats.Alloc,
			Available: memStats.Sys - memStats.Alloc,
		}
	}

	avg, err := load.Avg()
	if err != nil {
		logging.Debug("Load averages unavailable: %v", err)
		avg = &load.AvgStat{}
	}

	res := &HostResources{
		NodeID:    nodeID,
		NodeName:  nodeName,
		Timestamp: time.Now(),

		CPUCores: runtime.NumCPU(),

		MemoryTotal:     virtualMem.Total,
		MemoryUsed:      virtualMem.Used,
		MemoryAvailable: virtualMem.Available,
		MemoryUsage:     virtualMem.UsedPercent,

		GoRoutines: runtime.NumGoroutine(),
		GoMemAlloc: memStats.Alloc,
		GoMemSys:   memStats.Sys,
		GoGCCycles: memStats.NumGC,
		GoGCPause:  float64(memStats.PauseNs[(memStats.NumGC+255)%256]) / 1e6,

		Uptime: time.Since(startTime),
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
	}

	logging.Debug("Gathered resources for node %s: CPU=%d, Memory=%dMB, Goroutines=%d",
		nodeID, res.CPUCores, res.MemoryTotal/(1024*1024), res.GoRoutines)
	return res
}

// ToJSON encodes the snapshot for a gossip query response.
func (r *HostResources) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON decodes a snapshot received from another daemon.
func FromJSON(data []byte) (*HostResources, error) {
	var res HostResources
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
