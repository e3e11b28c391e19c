package store

import (
	"context"
	"sync"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/requestcontext"
)

// ActorStore keeps records in process. Each hash has a single writer: updates
// to one device are serialized by that device's own lock.
type ActorStore struct {
	devices sync.Map // id.FingerprintHash -> *device
}

type device struct {
	mu     sync.Mutex
	record *models.Record
}

func NewActorStore() *ActorStore {
	return &ActorStore{}
}

func (s *ActorStore) Check(_ context.Context, hash id.FingerprintHash, email string) (models.DeviceData, error) {
	v, ok := s.devices.Load(hash)
	if !ok {
		return models.UnknownDevice(), nil
	}
	d := v.(*device)
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.ToDeviceData(d.record, email), nil
}

func (s *ActorStore) Record(ctx context.Context, hash id.FingerprintHash, email, ip string, tenantID id.TenantID) error {
	now := requestcontext.Now(ctx)
	v, _ := s.devices.LoadOrStore(hash, &device{})
	d := v.(*device)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record == nil {
		d.record = models.NewRecord(hash, email, ip, tenantID, now)
		return nil
	}
	d.record.ApplySignup(email, ip, tenantID, now)
	return nil
}
