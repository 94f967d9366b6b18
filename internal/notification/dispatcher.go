package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Permission is the device-alert permission state for one session.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

// Device is the device-level alert channel for one principal. Production uses
// the email-backed device in device.go; tests use recording fakes. The receipt
// identifies the dispatch attempt so the transport can deduplicate redelivery.
type Device interface {
	RequestPermission(ctx context.Context) (bool, error)
	Notify(ctx context.Context, receipt, title, body string) error
}

// Dispatcher raises at most one device alert per notification id per session.
// Permission follows unknown → (request) → granted | denied; once denied it
// never attempts delivery again. The dispatched-id set is kept here even
// though the feed listener already rejects duplicate merges, so a repeated
// dispatch attempt for the same id stays a no-op.
type Dispatcher struct {
	mu     sync.Mutex
	device Device
	log    *zap.Logger
	state  Permission
	sent   map[string]string
}

func NewDispatcher(device Device, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		device: device,
		log:    log,
		sent:   make(map[string]string),
	}
}

// Dispatch delivers the alert for a newly merged notification and returns the
// dispatch receipt, which the device carries to the transport as an
// idempotency key. A repeated dispatch of the same id returns the original
// receipt without redelivering; when permission is not granted the dispatch is
// skipped and the receipt is empty. Denied permission degrades silently to
// in-app-only display.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) string {
	d.mu.Lock()
	if d.state == PermissionUnknown {
		d.mu.Unlock()
		granted, err := d.device.RequestPermission(ctx)
		d.mu.Lock()
		if d.state == PermissionUnknown {
			if err != nil || !granted {
				d.state = PermissionDenied
			} else {
				d.state = PermissionGranted
			}
		}
	}
	if d.state != PermissionGranted {
		d.mu.Unlock()
		return ""
	}
	id := n.ID.Hex()
	if receipt, dup := d.sent[id]; dup {
		d.mu.Unlock()
		return receipt
	}
	receipt := uuid.NewString()
	d.sent[id] = receipt
	d.mu.Unlock()

	if err := d.device.Notify(ctx, receipt, n.Title, n.Body); err != nil {
		d.log.Warn("device alert failed",
			zap.String("notification", id),
			zap.String("receipt", receipt),
			zap.Error(err))
		return receipt
	}
	d.log.Info("device alert delivered",
		zap.String("notification", id),
		zap.String("receipt", receipt))
	return receipt
}

// State returns the current permission state.
func (d *Dispatcher) State() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
