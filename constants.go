package hound

import "github.com/ehrlich-b/hound/internal/constants"

// Re-exported limits from internal/constants, per spec §6.
const (
	MaxDataRequest       = constants.MaxDataRequests
	MaxDeviceNameLen     = constants.MaxDeviceNameLen
	MaxDevices           = constants.MaxDevices
	DefaultQueueCapacity = constants.DefaultQueueCapacity
	PullPeriod           = constants.PullPeriod
)
