// Package display renders pfbatchctl output as aligned tables or indented
// JSON, depending on --output. Table rendering uses text/tabwriter and
// go-humanize; status words in the single-object views are colored with
// lipgloss.
package display

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/client"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/utils"
	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/dustin/go-humanize"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#42E66C")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8C547")).Bold(true)
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
)

// statusText colors a status word: healthy and alive in green, left,
// leaving and degraded in yellow, anything else in red.
func statusText(status string) string {
	switch status {
	case "healthy", "alive", "applied", "sent":
		return okStyle.Render(status)
	case "left", "leaving", "skipped", "degraded":
		return warnStyle.Render(status)
	default:
		return badStyle.Render(status)
	}
}

func isJSON() bool {
	return config.Global.Output == "json"
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		logging.Error("Failed to encode JSON: %v", err)
		fmt.Println("Error encoding JSON output")
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func ticks(n uint64) string {
	if n == 1 {
		return "1 tick"
	}
	return fmt.Sprintf("%s ticks", humanize.Comma(int64(n)))
}

// DisplayDestinations prints one row per destination
func DisplayDestinations(dests []admission.Info) {
	if len(dests) == 0 {
		if isJSON() {
			fmt.Println("[]")
		} else {
			fmt.Println("No destinations found")
		}
		return
	}
	if isJSON() {
		printJSON(dests)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tNAME\tBATCH SIZE\tMAX HOLD\tOPEN\tTIMER\tITEMS\tBATCHES\tFULL\tTIMEOUT\tFORCED")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tBATCH SIZE\tMAX HOLD\tOPEN\tITEMS\tBATCHES")
	}

	for _, d := range dests {
		if config.Global.Verbose {
			timer := "-"
			if d.TimerArmed {
				timer = "armed"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.Name, d.Config.BatchSizeThreshold, ticks(d.Config.MaxHoldTicks),
				d.OpenItems, timer,
				humanize.Comma(int64(d.Stats.Items)), humanize.Comma(int64(d.Stats.Batches)),
				humanize.Comma(int64(d.Stats.ThresholdFlushes)),
				humanize.Comma(int64(d.Stats.TimeoutFlushes)),
				humanize.Comma(int64(d.Stats.ForcedFlushes)))
		} else {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s\t%s\n",
				d.ID, d.Name, d.Config.BatchSizeThreshold, ticks(d.Config.MaxHoldTicks),
				d.OpenItems,
				humanize.Comma(int64(d.Stats.Items)), humanize.Comma(int64(d.Stats.Batches)))
		}
	}
}

// DisplayDestination prints the full state of one destination
func DisplayDestination(d admission.Info) {
	if isJSON() {
		printJSON(d)
		return
	}

	fmt.Printf("Destination: %s\n", d.Name)
	fmt.Printf("  ID:          %d\n", d.ID)
	fmt.Printf("  Batch Size:  %d\n", d.Config.BatchSizeThreshold)
	fmt.Printf("  Max Hold:    %s\n", ticks(d.Config.MaxHoldTicks))
	fmt.Printf("  Open Items:  %d\n", d.OpenItems)
	fmt.Printf("  Timer Armed: %t\n", d.TimerArmed)
	fmt.Println()

	fmt.Printf("Counters:\n")
	fmt.Printf("  Items:             %s\n", humanize.Comma(int64(d.Stats.Items)))
	fmt.Printf("  Batches:           %s\n", humanize.Comma(int64(d.Stats.Batches)))
	fmt.Printf("  Threshold Flushes: %s\n", humanize.Comma(int64(d.Stats.ThresholdFlushes)))
	fmt.Printf("  Timeout Flushes:   %s\n", humanize.Comma(int64(d.Stats.TimeoutFlushes)))
	fmt.Printf("  Forced Flushes:    %s\n", humanize.Comma(int64(d.Stats.ForcedFlushes)))
	if config.Global.Verbose {
		fmt.Printf("  Timers Started:    %s\n", humanize.Comma(int64(d.Stats.TimersStarted)))
		fmt.Printf("  Timers Stopped:    %s\n", humanize.Comma(int64(d.Stats.TimersStopped)))
	}
	if d.Stats.Batches > 0 {
		fmt.Printf("  Mean Batch:        %.1f items\n", float64(d.Stats.Items)/float64(d.Stats.Batches))
	}
}

// DisplaySetBatch prints the outcome of a batch change
func DisplaySetBatch(ref string, res *client.SetBatchResult, broadcastRequested bool) {
	if isJSON() {
		printJSON(res)
		return
	}

	local := "skipped"
	if res.Applied {
		local = "applied"
	}
	fmt.Printf("Destination %s\n", ref)
	fmt.Printf("  Local:     %s\n", statusText(local))
	if broadcastRequested {
		switch {
		case res.Broadcast:
			fmt.Printf("  Broadcast: %s\n", statusText("sent"))
		default:
			fmt.Printf("  Broadcast: %s (%s)\n", statusText("failed"), res.BroadcastError)
		}
	}
	if res.Destination != nil {
		fmt.Printf("  Now:       batch size %d, max hold %s\n",
			res.Destination.Config.BatchSizeThreshold, ticks(res.Destination.Config.MaxHoldTicks))
	}
}

// DisplayInfo prints a summary of one daemon
func DisplayInfo(health *client.Health, stats *client.Stats, dests []admission.Info, members []client.Member) {
	if isJSON() {
		printJSON(struct {
			Health       *client.Health   `json:"health"`
			Stats        *client.Stats    `json:"stats"`
			Destinations []admission.Info `json:"destinations"`
			Members      []client.Member  `json:"members"`
		}{health, stats, dests, members})
		return
	}

	fmt.Printf("Daemon Information:\n")
	fmt.Printf("  Status:       %s\n", statusText(health.Status))
	fmt.Printf("  Version:      %s\n", health.Version)
	fmt.Printf("  Uptime:       %s\n", health.Uptime)
	fmt.Printf("  API:          %s\n", config.Global.APIAddr)
	fmt.Printf("  Workers:      %d\n", len(stats.Workers))
	fmt.Printf("  Destinations: %d\n", len(dests))
	fmt.Printf("  Backlog:      %d\n", stats.Backlog)
	fmt.Printf("  Armed Timers: %d\n", stats.Armed)
	for _, w := range health.Workers {
		fmt.Printf("    worker %d: tick %d, backlog %d, %d armed, %d live\n",
			w.Worker, w.Now, w.Backlog, w.ArmedTimers, w.LiveBatches)
	}
	fmt.Println()

	fmt.Printf("Fleet:\n")
	if len(members) == 0 {
		fmt.Printf("  gossip disabled\n")
		return
	}
	byStatus := make(map[string]int)
	for _, m := range members {
		byStatus[m.Status]++
	}
	fmt.Printf("  Members:      %d\n", len(members))
	for status, count := range byStatus {
		fmt.Printf("  %-12s: %d\n", status, count)
	}
}

// DisplayStats prints per-worker dispatch counters and the pipeline stages
func DisplayStats(stats *client.Stats) {
	if isJSON() {
		printJSON(stats)
		return
	}

	fmt.Printf("Dispatch:\n")
	fmt.Printf("  Ticks:       %s\n", humanize.Comma(int64(stats.Totals.Ticks)))
	fmt.Printf("  Admitted:    %s\n", humanize.Comma(int64(stats.Totals.Admitted)))
	fmt.Printf("  Released:    %s batches, %s items\n",
		humanize.Comma(int64(stats.Totals.Released)), humanize.Comma(int64(stats.Totals.ReleasedItems)))
	fmt.Printf("  Timed Out:   %s\n", humanize.Comma(int64(stats.Totals.TimedOut)))
	fmt.Printf("  Expired:     %s\n", humanize.Comma(int64(stats.Totals.Expired)))
	fmt.Printf("  Stale:       %s\n", humanize.Comma(int64(stats.Totals.Stale)))
	fmt.Printf("  Backlog:     %d\n", stats.Backlog)
	fmt.Printf("  Armed:       %d\n", stats.Armed)
	if stats.Traffic != nil {
		fmt.Printf("  Traffic:     %s bursts, %s items, %s rejected\n",
			humanize.Comma(int64(stats.Traffic.Bursts)), humanize.Comma(int64(stats.Traffic.Items)),
			humanize.Comma(int64(stats.Traffic.Rejected)))
		if stats.Traffic.LastError != "" {
			fmt.Printf("  Last Error:  %s\n", stats.Traffic.LastError)
		}
	}
	fmt.Println()

	w := newTable()
	fmt.Fprintln(w, "WORKER\tNOW\tDESTS\tBACKLOG\tRUNQ CAP\tGROWS\tLIVE\tPOOL\tRELEASED")
	for _, s := range stats.Workers {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Worker, humanize.Comma(int64(s.Now)), len(s.Destinations), s.Backlog,
			s.RunQueueCap, s.RunQueueGrows, s.LiveBatches, s.PoolCap,
			humanize.Comma(int64(s.Counters.Released)))
	}
	w.Flush()

	if len(stats.Stages) > 0 {
		fmt.Println()
		w = newTable()
		fmt.Fprintln(w, "STAGE\tBATCHES\tITEMS\tDIGEST")
		for _, st := range stats.Stages {
			fmt.Fprintf(w, "%s\t%s\t%s\t%016x\n",
				st.Name, humanize.Comma(int64(st.Batches)), humanize.Comma(int64(st.Items)), st.Digest)
		}
		w.Flush()
	}

	if config.Global.Verbose && stats.Host != nil {
		fmt.Println()
		fmt.Printf("Host: %s, %d goroutines, %s heap\n",
			stats.Host.NodeName, stats.Host.GoRoutines, humanize.IBytes(stats.Host.GoMemAlloc))
	}
}

// DisplayLatency prints the per-protocol latency table
func DisplayLatency(lat *client.Latency) {
	if isJSON() {
		printJSON(lat)
		return
	}

	fmt.Printf("Window:    %s (since %s)\n", lat.Window.Round(time.Millisecond), humanize.Time(lat.Since))
	fmt.Printf("Threshold: %s\n", lat.Threshold)
	fmt.Printf("Rate:      %s pkt/s, %sbit/s\n",
		humanize.CommafWithDigits(lat.PacketsPerSecond, 1), humanize.SIWithDigits(lat.BitsPerSecond, 2, ""))
	if lat.Reset {
		fmt.Printf("Counters reset after this read\n")
	}
	fmt.Println()

	w := newTable()
	defer w.Flush()

	fmt.Fprintln(w, "PROTOCOL\tPACKETS\tBYTES\tAVG LATENCY\tTIMEOUTS")
	for _, row := range lat.Protocols {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			row.Protocol, humanize.Comma(int64(row.Packets)), humanize.IBytes(row.Bytes),
			row.AverageLatency, humanize.Comma(int64(row.Timeouts)))
	}
	fmt.Fprintf(w, "total\t%s\t%s\t%s\t%s\n",
		humanize.Comma(int64(lat.Total.Packets)), humanize.IBytes(lat.Total.Bytes),
		lat.Total.AverageLatency, humanize.Comma(int64(lat.Total.Timeouts)))
}

// DisplayMembers prints the fleet membership table
func DisplayMembers(members []client.Member) {
	if len(members) == 0 {
		if isJSON() {
			fmt.Println("[]")
		} else {
			fmt.Println("No fleet members found")
		}
		return
	}
	if isJSON() {
		printJSON(members)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tNAME\tADDRESS\tAPI\tSTATUS\tLAST SEEN")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tADDRESS\tSTATUS\tLAST SEEN")
	}
	for _, m := range members {
		lastSeen := utils.FormatDuration(time.Since(m.LastSeen))
		if config.Global.Verbose {
			apiAddr := m.APIAddr
			if apiAddr == "" {
				apiAddr = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				utils.TruncateID(m.ID), m.Name, m.Address, apiAddr, m.Status, lastSeen)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				utils.TruncateID(m.ID), m.Name, m.Address, m.Status, lastSeen)
		}
	}
}

// DisplayResources prints one row per daemon host
func DisplayResources(res []client.NodeResources) {
	if len(res) == 0 {
		if isJSON() {
			fmt.Println("[]")
		} else {
			fmt.Println("No node resources found")
		}
		return
	}
	if isJSON() {
		printJSON(res)
		return
	}

	w := newTable()
	defer w.Flush()

	if config.Global.Verbose {
		fmt.Fprintln(w, "ID\tNAME\tCPU\tMEMORY\tLOAD\tUPTIME\tGOROUTINES\tHEAP")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tCPU\tMEMORY\tLOAD\tUPTIME")
	}
	for _, r := range res {
		memory := fmt.Sprintf("%s/%s (%.1f%%)",
			humanize.IBytes(r.MemoryUsed), humanize.IBytes(r.MemoryTotal), r.MemoryUsage)
		load := fmt.Sprintf("%.2f", r.Load1)
		if config.Global.Verbose {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
				utils.TruncateID(r.NodeID), r.NodeName, r.CPUCores, memory, load,
				r.UptimeHuman, r.GoRoutines, humanize.IBytes(r.GoMemAlloc))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				utils.TruncateID(r.NodeID), r.NodeName, r.CPUCores, memory, load, r.UptimeHuman)
		}
	}
}

// DisplayNodeResources prints the host snapshot of one daemon
func DisplayNodeResources(r *client.NodeResources) {
	if isJSON() {
		printJSON(r)
		return
	}

	fmt.Printf("Node: %s (%s)\n", r.NodeName, r.NodeID)
	fmt.Printf("  Reported:  %s\n", humanize.Time(r.Timestamp))
	fmt.Printf("  Uptime:    %s\n", r.UptimeHuman)
	fmt.Printf("  CPU Cores: %d\n", r.CPUCores)
	fmt.Printf("  Load:      %.2f %.2f %.2f\n", r.Load1, r.Load5, r.Load15)
	fmt.Println()

	fmt.Printf("Memory:\n")
	fmt.Printf("  Total:     %d MB\n", r.MemoryTotalMB)
	fmt.Printf("  Used:      %d MB (%.1f%%)\n", r.MemoryUsedMB, r.MemoryUsage)
	fmt.Printf("  Available: %d MB\n", r.MemoryAvailableMB)
	fmt.Println()

	fmt.Printf("Go Runtime:\n")
	fmt.Printf("  Goroutines: %d\n", r.GoRoutines)
	fmt.Printf("  Heap:       %s\n", humanize.IBytes(r.GoMemAlloc))
	fmt.Printf("  Sys:        %s\n", humanize.IBytes(r.GoMemSys))
	fmt.Printf("  GC Cycles:  %d (last pause %.2fms)\n", r.GoGCCycles, r.GoGCPause)
}
