// Package ui is the desktop system tray: a glanceable queue counter
// and a switch to pause job intake.
package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Controller is what the tray needs from the engine.
type Controller interface {
	Pause()
	Resume()
	IsPaused() bool
	QueueDepth() int64
	ActiveCount() int64
}

type Tray struct {
	engine Controller
	logger *slog.Logger

	statusItem *systray.MenuItem
	queueItem  *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Engine Controller
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		engine: cfg.Engine,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("ClipForge")
	systray.SetTooltip("ClipForge Render Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.queueItem = systray.AddMenuItem("Jobs: 0 active, 0 queued", "Render queue")
	t.queueItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause intake", "Stop accepting new render jobs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit ClipForge Render Agent")

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refreshCounts()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.engine == nil {
		return
	}

	if t.engine.IsPaused() {
		t.engine.Resume()
		t.pauseItem.SetTitle("Pause intake")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.engine.Pause()
		t.pauseItem.SetTitle("Resume intake")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) refreshCounts() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.engine == nil || t.queueItem == nil {
		return
	}
	active := t.engine.ActiveCount()
	queued := t.engine.QueueDepth()
	t.queueItem.SetTitle(fmt.Sprintf("Jobs: %d active, %d queued", active, queued))

	if t.engine.IsPaused() {
		return
	}
	if active > 0 {
		t.statusItem.SetTitle("Status: Rendering")
	} else {
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
