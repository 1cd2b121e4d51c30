package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/gorilla/websocket"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

// progressFrame mirrors one message of the /progress/ws stream
type progressFrame struct {
	State    domain.SessionState `json:"state"`
	JobID    string              `json:"job_id"`
	Filename string              `json:"filename"`
	Error    string              `json:"error"`
	Progress app.ProgressView    `json:"progress"`
}

func printInfo(info *domain.ProbeResult) {
	writeInfo(os.Stdout, info)
}

func writeInfo(out io.Writer, info *domain.ProbeResult) {
	fmt.Fprintf(out, "%s\n\n", info.Title)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tEXT\tQUALITY\tSIZE")
	for _, group := range [][]domain.Rendition{info.VideoFormats, info.AudioFormats} {
		for _, r := range group {
			size := "-"
			if r.SizeBytes != nil {
				size = app.FormatBytes(*r.SizeBytes)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Ext, r.Label, size)
		}
	}
	w.Flush()
}

func printAck(ack *domain.Ack) {
	if ack.Status == domain.AckAlreadyDone {
		fmt.Printf("Already downloaded: %s\n", ack.Filename)
		return
	}
	fmt.Printf("Download started (job %s)\n", ack.JobID)
	fmt.Printf("  Output: %s\n", ack.Filename)
}

func printProgress(view app.ProgressView) {
	writeProgress(os.Stdout, view)
}

func writeProgress(out io.Writer, view app.ProgressView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tSTATUS\tPERCENT\tSIZE\tSPEED\tETA")
	for _, phase := range domain.Phases {
		p, ok := view[phase]
		if !ok {
			continue
		}
		status := string(p.Status)
		if p.Error != "" {
			status += ": " + p.Error
		}
		size := ""
		if p.Total != "" {
			size = p.Downloaded + " / " + p.Total
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%s\n", phase, status, p.Percent, size, p.Speed, p.ETA)
	}
	w.Flush()
}

// watchProgress prints every progress frame until the session leaves the
// downloading and merging states
func watchProgress(c *apiClient, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.websocketURL("/progress/ws"), c.cookieHeader())
	if err != nil {
		return fmt.Errorf("failed to connect to progress stream: %w", err)
	}
	defer conn.Close()

	for {
		var frame progressFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("progress stream closed: %w", err)
		}

		writeProgress(out, frame.Progress)
		fmt.Fprintln(out)

		if !frame.State.IsActive() {
			switch frame.State {
			case domain.StateDone:
				fmt.Fprintf(out, "Saved to %s\n", frame.Filename)
			case domain.StateError:
				return fmt.Errorf("download failed: %s", frame.Error)
			default:
				fmt.Fprintf(out, "Session is %s\n", frame.State)
			}
			return nil
		}
	}
}
