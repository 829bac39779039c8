// Package notify shows desktop notifications and plays feedback sounds.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier sends desktop notifications under the application's name.
type Notifier struct {
	title string
	icon  string
	log   *slog.Logger

	notify func(title, message, icon string) error
	alert  func(title, message, icon string) error
	beep   func(freq float64, duration int) error
}

// New returns a Notifier. icon may be empty or a path to an image file.
func New(title, icon string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		title:  title,
		icon:   icon,
		log:    logger.With("component", "notify"),
		notify: func(t, m, i string) error { return beeep.Notify(t, m, i) },
		alert:  func(t, m, i string) error { return beeep.Alert(t, m, i) },
		beep:   beeep.Beep,
	}
}

// Notify shows an informational notification.
func (n *Notifier) Notify(message string) error {
	if err := n.notify(n.title, message, n.icon); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Alert shows a notification with an alert sound, for failures the user
// must see.
func (n *Notifier) Alert(message string) error {
	if err := n.alert(n.title, message, n.icon); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	return nil
}

// Cue is a short feedback sound.
type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueCancel
)

var cueTones = map[Cue]float64{
	CueStart:  880,
	CueStop:   660,
	CueCancel: 440,
}

// Beep plays cue. volume in [0, 1] scales the duration, as the system beep
// has no volume control; 0 is silent.
func (n *Notifier) Beep(cue Cue, volume float64) {
	if volume <= 0 {
		return
	}
	freq, ok := cueTones[cue]
	if !ok {
		freq = beeep.DefaultFreq
	}
	duration := int(40 + 80*min(volume, 1))
	if err := n.beep(freq, duration); err != nil {
		n.log.Debug("play cue", "cue", cue, "error", err)
	}
}
