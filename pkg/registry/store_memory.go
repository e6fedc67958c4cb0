package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	devices   map[string]*Device   // keyed by device uuid
	issuances map[string]*Issuance // keyed by token id

	// FailIssuance, when set, makes LogTokenIssuance return the error.
	// Test hook for the audit-write failure path.
	FailIssuance error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:   make(map[string]*Device),
		issuances: make(map[string]*Issuance),
	}
}

// IsRegistered reports whether the device uuid has a registered record.
func (s *MemoryStore) IsRegistered(ctx context.Context, deviceUUID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceUUID]
	return ok && dev.Status == StatusRegistered, nil
}

// GetDevice returns a copy of the device record, or ErrNotFound.
func (s *MemoryStore) GetDevice(ctx context.Context, deviceUUID string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceUUID]
	if !ok {
		return nil, ErrNotFound
	}
	d := *dev
	return &d, nil
}

// RegisterDevice registers a device. The map insert under the write lock is
// the atomic check-and-insert; an existing record is left untouched.
func (s *MemoryStore) RegisterDevice(ctx context.Context, reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[reg.DeviceUUID]; exists {
		return nil
	}
	s.devices[reg.DeviceUUID] = &Device{
		DeviceUUID:   reg.DeviceUUID,
		DeviceID:     reg.DeviceID,
		MACAddress:   reg.MACAddress,
		DeviceType:   reg.DeviceType,
		Status:       StatusRegistered,
		RegisteredAt: time.Now().UTC(),
	}
	return nil
}

// SetStatus overrides a device's status. Intended for tests and
// administrative revocation.
func (s *MemoryStore) SetStatus(ctx context.Context, deviceUUID string, status DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[deviceUUID]
	if !ok {
		return ErrNotFound
	}
	dev.Status = status
	return nil
}

// LogTokenIssuance appends an audit entry for an issued token.
func (s *MemoryStore) LogTokenIssuance(ctx context.Context, deviceID, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailIssuance != nil {
		return s.FailIssuance
	}
	s.issuances[tokenID] = &Issuance{
		TokenID:   tokenID,
		DeviceID:  deviceID,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	return nil
}

// Issuances returns the audit entries for a device, newest first.
func (s *MemoryStore) Issuances(ctx context.Context, deviceID string) ([]Issuance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Issuance
	for _, iss := range s.issuances {
		if iss.DeviceID == deviceID {
			out = append(out, *iss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

// DeviceCount returns the number of device records.
func (s *MemoryStore) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// IssuanceCount returns the number of audit entries.
func (s *MemoryStore) IssuanceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issuances)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
