package checks

import (
	"context"

	fpmodels "mailguard/internal/fingerprint/models"
	"mailguard/internal/validation/lists"
	"mailguard/internal/validation/models"
	id "mailguard/pkg/domain"
)

// reuseThreshold is the signup count past which a device may not bring
// another new email.
const reuseThreshold = 3

// IP flags VPN exits and known-bad addresses.
type IP struct {
	Lists *lists.Store
}

func (IP) Name() models.CheckName { return models.CheckIP }

func (c IP) Run(_ context.Context, in Input) (Outcome, error) {
	l := c.Lists.Current()
	data := &models.IPData{
		IP:      in.IP.String(),
		ASN:     in.ASN,
		IsVPN:   l.IsVPN(in.IP, in.ASN),
		IsFraud: l.IsFraud(in.IP),
	}
	out := pass()
	if data.IsVPN {
		out.Pass = false
		out.Signals = append(out.Signals, models.SignalVPNDetected)
	}
	if data.IsFraud {
		out.Pass = false
		out.Signals = append(out.Signals, models.SignalFraudIP)
	}
	out.IP = data
	return out, nil
}

// DeviceChecker reads a fingerprint's history.
type DeviceChecker interface {
	Check(ctx context.Context, hash id.FingerprintHash, address string) (fpmodels.DeviceData, error)
}

// Device fails a device that has already signed up reuseThreshold times and
// now brings an address it has not used. Any prior signup is reported as a
// signal even when the check passes.
type Device struct {
	Devices DeviceChecker
}

func (Device) Name() models.CheckName { return models.CheckDevice }

func (c Device) Run(ctx context.Context, in Input) (Outcome, error) {
	data, err := c.Devices.Check(ctx, in.FingerprintHash, in.Email)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Pass: !(data.IsNewEmail && data.PreviousSignups >= reuseThreshold),
		Metadata: map[string]any{
			"previous_signups": data.PreviousSignups,
			"is_new_email":     data.IsNewEmail,
		},
		Device: &data,
	}
	if data.PreviousSignups > 0 {
		out.Signals = []models.Signal{models.SignalDeviceReuse, models.DeviceSeenSignal(data.PreviousSignups)}
	}
	return out, nil
}
