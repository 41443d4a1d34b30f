package device

import (
	"appupdate-go/internal/ota"
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	log "github.com/sirupsen/logrus"
)

const lookupTimeout = 3 * time.Second

// HostInfo describes the running host through gopsutil. The lookup runs once;
// non-empty override fields always win.
type HostInfo struct {
	overrides ota.DeviceInfo
	lookup    func(ctx context.Context) (*host.InfoStat, error)

	once   sync.Once
	cached ota.DeviceInfo
}

var _ ota.DeviceInfoProvider = (*HostInfo)(nil)

func NewHostInfo(overrides ota.DeviceInfo) *HostInfo {
	return &HostInfo{overrides: overrides, lookup: host.InfoWithContext}
}

func (h *HostInfo) DeviceInfo(ctx context.Context) ota.DeviceInfo {
	h.once.Do(func() {
		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		stat, err := h.lookup(lookupCtx)
		if err != nil || stat == nil {
			log.Warnf("Failed to read host info: %v", err)
			h.cached = h.overrides
			return
		}
		h.cached = merge(h.overrides, fromInfoStat(stat))
	})
	return h.cached
}

func fromInfoStat(stat *host.InfoStat) ota.DeviceInfo {
	return ota.DeviceInfo{
		Model:         firstNonEmpty(stat.Hostname, stat.KernelArch),
		Brand:         firstNonEmpty(stat.Platform, stat.PlatformFamily, stat.OS),
		SystemName:    stat.OS,
		SystemVersion: firstNonEmpty(stat.PlatformVersion, stat.KernelVersion),
	}
}

// Static always returns the same descriptor.
type Static ota.DeviceInfo

func (s Static) DeviceInfo(context.Context) ota.DeviceInfo {
	return ota.DeviceInfo(s)
}

func merge(overrides, detected ota.DeviceInfo) ota.DeviceInfo {
	return ota.DeviceInfo{
		Model:         firstNonEmpty(overrides.Model, detected.Model),
		Brand:         firstNonEmpty(overrides.Brand, detected.Brand),
		SystemName:    firstNonEmpty(overrides.SystemName, detected.SystemName),
		SystemVersion: firstNonEmpty(overrides.SystemVersion, detected.SystemVersion),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
