// Package registry holds the device directory the dashboard manages and the
// QoS profile catalog offered for boosts. Devices persist to a JSON file next
// to the session mirror.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
)

const devicesFile = "devices.json"

// Registry is the serialized device directory. All access goes through its
// mutex; every mutation rewrites the JSON file atomically.
type Registry struct {
	mu      sync.Mutex
	path    string
	devices map[string]domain.Device
}

// New loads the directory from dir/devices.json. A missing file means an
// empty directory.
func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.PersistenceError("failed to create data directory", err)
	}

	r := &Registry{
		path:    filepath.Join(dir, devicesFile),
		devices: make(map[string]domain.Device),
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, apperrors.PersistenceError("failed to read device directory", err)
	}

	var devices []domain.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, apperrors.PersistenceError("failed to decode device directory", err)
	}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r, nil
}

// Device implements domain.DeviceDirectory.
func (r *Registry) Device(id string) (domain.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	return d, ok
}

// List returns every device ordered by name, then id.
func (r *Registry) List() []domain.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// Create validates and stores a new device, assigning an id when none is
// given.
func (r *Registry) Create(device domain.Device) (domain.Device, error) {
	if device.IPAddress == "" && device.MSISDN == "" {
		return domain.Device{}, apperrors.ValidationError("a device needs an IP address or MSISDN")
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[device.ID]; exists {
		return domain.Device{}, apperrors.ValidationError("device id already exists").WithContext("device_id", device.ID)
	}
	r.devices[device.ID] = device
	return device, r.persistLocked()
}

// Update replaces the stored device under id.
func (r *Registry) Update(id string, device domain.Device) (domain.Device, error) {
	if device.IPAddress == "" && device.MSISDN == "" {
		return domain.Device{}, apperrors.ValidationError("a device needs an IP address or MSISDN")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return domain.Device{}, apperrors.NotFoundError("device not found").WithContext("device_id", id)
	}
	device.ID = id
	r.devices[id] = device
	return device, r.persistLocked()
}

// Delete removes the device under id, reporting whether one existed.
func (r *Registry) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false, nil
	}
	delete(r.devices, id)
	return true, r.persistLocked()
}

func (r *Registry) persistLocked() error {
	devices := make([]domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return apperrors.PersistenceError("failed to encode device directory", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apperrors.PersistenceError("failed to write device directory", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return apperrors.PersistenceError("failed to replace device directory", err)
	}
	return nil
}
