package device

import (
	"appupdate-go/internal/ota"
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
)

func TestHostInfoMapsInfoStat(t *testing.T) {
	calls := 0
	h := NewHostInfo(ota.DeviceInfo{Brand: "acme"})
	h.lookup = func(context.Context) (*host.InfoStat, error) {
		calls++
		return &host.InfoStat{
			Hostname:        "kiosk-12",
			OS:              "linux",
			Platform:        "debian",
			PlatformVersion: "12.5",
			KernelVersion:   "6.1.0",
		}, nil
	}

	got := h.DeviceInfo(context.Background())
	assert.Equal(t, ota.DeviceInfo{Model: "kiosk-12", Brand: "acme", SystemName: "linux", SystemVersion: "12.5"}, got)

	h.DeviceInfo(context.Background())
	assert.Equal(t, 1, calls)
}

func TestHostInfoFallsBackToOverrides(t *testing.T) {
	h := NewHostInfo(ota.DeviceInfo{Model: "Pixel 8"})
	h.lookup = func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("no /proc")
	}

	assert.Equal(t, ota.DeviceInfo{Model: "Pixel 8"}, h.DeviceInfo(context.Background()))
}

func TestFromInfoStatFallbacks(t *testing.T) {
	got := fromInfoStat(&host.InfoStat{OS: "darwin", KernelArch: "arm64", KernelVersion: "23.4.0"})
	assert.Equal(t, "arm64", got.Model)
	assert.Equal(t, "darwin", got.Brand)
	assert.Equal(t, "23.4.0", got.SystemVersion)
}

func TestStatic(t *testing.T) {
	s := Static{Model: "iPhone15,2", Brand: "Apple", SystemName: "iOS", SystemVersion: "17.4"}
	assert.Equal(t, "Apple", s.DeviceInfo(context.Background()).Brand)
}
