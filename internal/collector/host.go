// Host information: hostname, platform, uptime and boot time.
// Uses gopsutil host for cross-platform host metrics.
package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/Guliveer/vitalis/cpumon/internal/models"
)

// CollectHost gathers host information.
func CollectHost(ctx context.Context) (models.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return models.HostInfo{}, err
	}
	return models.HostInfo{
		Hostname:      info.Hostname,
		Platform:      info.Platform + " " + info.PlatformVersion,
		KernelVersion: info.KernelVersion,
		UptimeSeconds: info.Uptime,
		BootTime:      time.Unix(int64(info.BootTime), 0).UTC(),
	}, nil
}
