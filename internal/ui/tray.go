package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/clipforge/clipforge-agent/internal/session"
)

const refreshInterval = time.Second

type Tray struct {
	session *session.Service
	addr    string
	logger  *slog.Logger

	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	queueItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Session *session.Service
	Addr    string
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		session: cfg.Session,
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks until the tray loop exits. Must be called from the main
// goroutine on platforms that require it.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("ClipForge")
	systray.SetTooltip("ClipForge Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current session state")
	t.statusItem.Disable()

	t.videoItem = systray.AddMenuItem("No video loaded", "Loaded source video")
	t.videoItem.Disable()

	t.queueItem = systray.AddMenuItem("Queue: 0", "Segments selected for composition")
	t.queueItem.Disable()

	systray.AddSeparator()

	addrItem := systray.AddMenuItem("API: "+t.addr, "Local API address")
	addrItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit ClipForge Agent")

	go func() {
		for range quitItem.ClickedCh {
			t.logger.Info("quit requested from tray")
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// Watch polls the session and refreshes menu titles until ctx is done.
func (t *Tray) Watch(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}

	status := t.session.Snapshot()

	t.statusItem.SetTitle("Status: " + stateLabel(status.State))
	if status.Video != nil {
		t.videoItem.SetTitle(status.Video.Name)
	} else {
		t.videoItem.SetTitle("No video loaded")
	}
	t.queueItem.SetTitle(fmt.Sprintf("Queue: %d", status.QueueCount))
}

func stateLabel(state session.State) string {
	s := string(state)
	if s == "" {
		return "Idle"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (t *Tray) Quit() {
	systray.Quit()
}
