package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

var (
	serverURL   string
	sessionFile string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "mediagrab",
		Short: "mediagrab CLI - fetch and download media through yt-dlp and ffmpeg",
		Long: `A command-line client for the mediagrab server. The CLI keeps one session
between invocations, so fetch, download and progress commands share state.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5000", "Server URL")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", defaultSessionFile(), "File holding the CLI session id")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(videoCmd)
	rootCmd.AddCommand(audioCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(historyCmd)
}

// client checks the server is running, starting it if needed (unless --no-auto-start)
func client() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL, sessionFile)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Fetch media info and list the available formats",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var info domain.ProbeResult
		exitOnError(client().do(http.MethodPost, "/fetch", map[string]string{"url": args[0]}, &info))
		printInfo(&info)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the formats of the fetched media",
	Run: func(cmd *cobra.Command, args []string) {
		var info domain.ProbeResult
		exitOnError(client().do(http.MethodGet, "/info", nil, &info))
		printInfo(&info)
	},
}

var videoCmd = &cobra.Command{
	Use:   "video [video-id]",
	Short: "Download a video format, merged with an audio format when needed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		audioID, _ := cmd.Flags().GetString("audio")
		container, _ := cmd.Flags().GetString("format")
		saveDir, _ := cmd.Flags().GetString("save-dir")

		payload := map[string]string{
			"video_id": args[0],
			"audio_id": audioID,
			"format":   container,
			"save_dir": saveDir,
		}
		var ack domain.Ack
		exitOnError(client().do(http.MethodPost, "/download_video", payload, &ack))
		printAck(&ack)
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio [audio-id]",
	Short: "Download an audio format, transcoding when --format differs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		saveDir, _ := cmd.Flags().GetString("save-dir")

		payload := map[string]string{
			"audio_id": args[0],
			"format":   format,
			"save_dir": saveDir,
		}
		var ack domain.Ack
		exitOnError(client().do(http.MethodPost, "/download_audio", payload, &ack))
		printAck(&ack)
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the progress of the current download",
	Run: func(cmd *cobra.Command, args []string) {
		var view app.ProgressView
		exitOnError(client().do(http.MethodGet, "/progress", nil, &view))
		printProgress(view)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream progress until the current download ends",
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(watchProgress(client(), os.Stdout))
	},
}

var doneCmd = &cobra.Command{
	Use:   "done",
	Short: "Print the path of the last finished file",
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Filename string `json:"filename"`
		}
		exitOnError(client().do(http.MethodGet, "/done", nil, &result))
		if result.Filename == "" {
			fmt.Println("No finished download")
			return
		}
		fmt.Println(result.Filename)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current download",
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(client().do(http.MethodPost, "/cancel", nil, nil))
		fmt.Println("Cancellation requested")
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the fetched media and progress",
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(client().do(http.MethodPost, "/reset", nil, nil))
		fmt.Println("Session reset")
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the session state",
	Run: func(cmd *cobra.Command, args []string) {
		var view domain.SessionView
		exitOnError(client().do(http.MethodGet, "/state", nil, &view))

		fmt.Printf("Session: %s\n", view.ID)
		fmt.Printf("  State: %s\n", view.State)
		if view.Title != "" {
			fmt.Printf("  Title: %s\n", view.Title)
		}
		if view.URL != "" {
			fmt.Printf("  URL:   %s\n", view.URL)
		}
		if view.Filename != "" {
			fmt.Printf("  File:  %s\n", view.Filename)
		}
		if view.Error != "" {
			fmt.Printf("  Error: %s\n", view.Error)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the jobs of this session",
	Run: func(cmd *cobra.Command, args []string) {
		var result struct {
			Jobs []domain.JobRecord `json:"jobs"`
		}
		exitOnError(client().do(http.MethodGet, "/history", nil, &result))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATUS\tTITLE\tCREATED\tOUTPUT")
		for _, job := range result.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(job.ID, 8),
				job.Kind,
				job.Status,
				truncate(job.Title, 40),
				humanize.Time(job.CreatedAt),
				job.OutputPath)
		}
		w.Flush()
	},
}

func init() {
	videoCmd.Flags().StringP("audio", "a", "", "Audio format id (defaults to the best audio)")
	videoCmd.Flags().StringP("format", "f", "", "Output container (mp4, mkv, webm, mov)")
	videoCmd.Flags().StringP("save-dir", "d", "", "Output directory")
	audioCmd.Flags().StringP("format", "f", "", "Output format (mp3, m4a, opus, ogg, flac, wav)")
	audioCmd.Flags().StringP("save-dir", "d", "", "Output directory")
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
