package app

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/mediagrab-go/internal/domain"
)

// PhaseView is the client-facing rendering of a PhaseState
type PhaseView struct {
	Status     domain.PhaseStatus `json:"status"`
	Percent    float64            `json:"percent"`
	Downloaded string             `json:"downloaded,omitempty"`
	Total      string             `json:"total,omitempty"`
	Speed      string             `json:"speed,omitempty"`
	ETA        string             `json:"eta,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// ProgressView is the polled progress payload, keyed by phase name
type ProgressView map[domain.Phase]PhaseView

// FormatTable renders byte counts, speed and ETA as display strings
func FormatTable(table domain.ProgressTable) ProgressView {
	view := make(ProgressView, len(table))
	for phase, state := range table {
		view[phase] = FormatState(state)
	}
	return view
}

// FormatState renders a single phase
func FormatState(state domain.PhaseState) PhaseView {
	v := PhaseView{
		Status:  state.Status,
		Percent: state.Percent,
		Error:   state.Error,
	}
	if state.DownloadedBytes != nil {
		v.Downloaded = FormatBytes(*state.DownloadedBytes)
	}
	if state.TotalBytes != nil {
		v.Total = FormatBytes(*state.TotalBytes)
	}
	if state.SpeedBytesPerSec != nil {
		v.Speed = FormatSpeed(*state.SpeedBytesPerSec)
	}
	if state.ETA != nil {
		v.ETA = FormatETA(*state.ETA)
	}
	return v
}

// byteUnits are decimal units, matching the MB used by FormatSpeed
var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with two decimals, such as "12.00 MB".
// Counts below one KB are shown as whole bytes.
func FormatBytes(n int64) string {
	if n < humanize.KByte {
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n) / humanize.KByte
	unit := 0
	for value >= 1000 && unit < len(byteUnits)-1 {
		value /= 1000
		unit++
	}
	return humanize.FormatFloat("#,###.##", value) + " " + byteUnits[unit]
}

// FormatSpeed renders a transfer rate in MB/s with two decimals
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return humanize.FormatFloat("#,###.##", bytesPerSec/humanize.MByte) + " MB/s"
}

// FormatETA renders a duration as HH:MM:SS, or MM:SS below one hour
func FormatETA(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
