package sse

import (
	"time"

	"github.com/ivspro/tariff-import/internal/models"
)

// RunNotifier is the interface the run coordinator uses to emit
// progress events. A nil notifier is valid and emits nothing.
type RunNotifier interface {
	NotifyRunStarted(runID string, p *models.Provider)
	NotifyFileDone(runID string, p *models.Provider, logEntry *models.ImportLog)
	NotifyRunFinished(runID string, p *models.Provider, status models.RunStatus, message string)
}

// HubNotifier implements RunNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyRunStarted(runID string, p *models.Provider) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&RunEvent{
		Event:        EventRunStarted,
		RunID:        runID,
		ProviderID:   p.ID,
		ProviderName: p.Name,
		Timestamp:    time.Now(),
	})
}

func (n *HubNotifier) NotifyFileDone(runID string, p *models.Provider, logEntry *models.ImportLog) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&RunEvent{
		Event:        EventFileDone,
		RunID:        runID,
		ProviderID:   p.ID,
		ProviderName: p.Name,
		FileName:     logEntry.FileName,
		State:        string(logEntry.State),
		SuccessCount: logEntry.SuccessCount,
		ErrorCount:   logEntry.ErrorCount,
		Message:      logEntry.Message,
		Timestamp:    time.Now(),
	})
}

func (n *HubNotifier) NotifyRunFinished(runID string, p *models.Provider, status models.RunStatus, message string) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&RunEvent{
		Event:        EventRunFinished,
		RunID:        runID,
		ProviderID:   p.ID,
		ProviderName: p.Name,
		State:        string(status),
		Message:      message,
		Timestamp:    time.Now(),
	})
}
