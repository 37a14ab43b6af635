package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kicad-gtm/kicad-gtm/internal/daemon"
	"github.com/kicad-gtm/kicad-gtm/internal/engine"
	"github.com/kicad-gtm/kicad-gtm/internal/kicad"
	"github.com/kicad-gtm/kicad-gtm/pkg/detector"
	"github.com/kicad-gtm/kicad-gtm/pkg/utils"
	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true).
			Width(18)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the focused KiCad file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dm := daemon.New(cfg.Daemon.PIDFile)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return err
		}

		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()
		folder, err := repo.ProjectsFolder()
		if err != nil {
			return err
		}

		var lines []string
		lines = append(lines, titleStyle.Render(appName), "")
		if running {
			lines = append(lines, row("daemon", okStyle.Render(fmt.Sprintf("running (PID %d)", pid))))
		} else {
			lines = append(lines, row("daemon", warnStyle.Render("not running")))
		}

		status := engine.Status{Loaded: true, ProjectsFolder: folder}
		if status.Text() == "OK" {
			lines = append(lines, row("projects folder", folder))
		} else {
			lines = append(lines, row("projects folder", warnStyle.Render(status.Text())))
		}
		lines = append(lines, row("heartbeat every", cfg.Tracker.HeartbeatInterval.String()))
		if cfg.Sink.DisableRecording {
			lines = append(lines, row("recording", warnStyle.Render("disabled")))
		}

		if running {
			if live, err := fetchDaemonStatus(); err == nil {
				lines = append(lines,
					row("engine", live.Text()),
					row("indexed files", fmt.Sprint(live.IndexedFiles)),
					row("tracked file", live.CurrentFullPath),
					row("last recorded", lastActivity(live.LastRecordedAt)),
				)
			} else {
				lines = append(lines, dimStyle.Render("start with --web for live engine status"))
			}
		}

		lines = append(lines, "")
		lines = append(lines, focusedWindowLines()...)

		cmd.Println(strings.Join(lines, "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

func focusedWindowLines() []string {
	det, err := detector.New()
	if err != nil {
		return []string{dimStyle.Render(fmt.Sprintf("could not detect current window: %v", err))}
	}
	defer det.Close()

	info, err := det.GetFocusedWindow()
	if err != nil {
		return []string{dimStyle.Render("no focused window")}
	}
	return describeWindow(info)
}

// describeWindow shows what the engine would make of info.
func describeWindow(info *window.WindowInfo) []string {
	lines := []string{
		row("focused app", info.AppName),
		row("window title", info.WindowTitle),
		row("display", info.DisplayServer),
	}
	if id, ok := kicad.ParseTitle(info.WindowTitle); ok {
		lines = append(lines,
			row("project", id.Project),
			row("editor", id.Editor.String()),
			row("file", okStyle.Render(id.Filename())),
		)
	} else {
		lines = append(lines, row("file", dimStyle.Render("not a KiCad editor")))
	}
	return lines
}

// fetchDaemonStatus asks a daemon started with --web for its engine status.
func fetchDaemonStatus() (engine.Status, error) {
	var status engine.Status
	client := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/api/status", cfg.Web.Host, cfg.Web.Port))
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status, errors.Errorf("status API returned %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	return status, errors.Wrap(err, "failed to decode status")
}

// lastActivity formats a heartbeat time for display.
func lastActivity(at *time.Time) string {
	if at == nil {
		return "N/A"
	}
	return at.Format("15:04:05") + " (" + utils.Ago(*at, time.Now()) + ")"
}
