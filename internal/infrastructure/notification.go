package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/linkgrab/linkgrab/internal/domain"
	"go.uber.org/zap"
)

// commandRunner executes a notifier binary; replaced in tests
type commandRunner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// NotificationService sends desktop notifications about discovery and download runs
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    commandRunner
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run:    runCommand,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n == nil || !n.config.Enabled {
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyDiscoveryCompleted reports how many files a page yielded
func (n *NotificationService) NotifyDiscoveryCompleted(pageURL string, found int) {
	n.Send("Discovery Finished", fmt.Sprintf("Found %d files on %s", found, truncateString(pageURL, 40)))
}

// NotifyDiscoveryFailed reports a failed discovery run
func (n *NotificationService) NotifyDiscoveryFailed(pageURL string, err error) {
	n.Send("Discovery Failed", fmt.Sprintf("%s: %s", truncateString(pageURL, 40), truncateString(err.Error(), 60)))
}

// NotifySessionCompleted reports the aggregate of a finished session
func (n *NotificationService) NotifySessionCompleted(result *domain.SessionResult) {
	n.Send("Download Finished", fmt.Sprintf("Downloaded %d of %d files", result.Succeeded, result.Total))
}

// NotifySessionCancelled reports a cancelled session
func (n *NotificationService) NotifySessionCancelled(result *domain.SessionResult) {
	n.Send("Download Cancelled", fmt.Sprintf("Stopped after %d of %d files", result.Attempted, result.Total))
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
