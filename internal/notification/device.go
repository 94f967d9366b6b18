package notification

import (
	"context"

	"NoticeHub/internal/config"
)

// emailDevice delivers device-level alerts over the alert transport to the
// principal's address. Permission maps to the user's alert opt-in preference.
type emailDevice struct {
	svc   *config.AlertService
	to    string
	optIn bool
}

// NewEmailDevice wraps the alert transport as a per-principal Device.
func NewEmailDevice(svc *config.AlertService, to string, optIn bool) Device {
	return &emailDevice{svc: svc, to: to, optIn: optIn}
}

func (d *emailDevice) RequestPermission(ctx context.Context) (bool, error) {
	return d.optIn && d.to != "", nil
}

func (d *emailDevice) Notify(ctx context.Context, receipt, title, body string) error {
	return d.svc.Send(ctx, receipt, d.to, title, body)
}
