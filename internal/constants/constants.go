package constants

// Limits from the public API contract.
const (
	// MaxDataRequests is the maximum number of data requests a single
	// context may register.
	MaxDataRequests = 1000

	// MaxDeviceNameLen is the maximum device name length, including the
	// terminator, reported by GetDevName.
	MaxDeviceNameLen = 32

	// MaxDevices bounds the 8-bit device ID space.
	MaxDevices = 256
)

// Default configuration constants.
const (
	// DefaultQueueCapacity is a ready-made queue_len value. AllocCtx does not
	// substitute it for a zero queue_len; zero is rejected.
	DefaultQueueCapacity = 128

	// PullPeriod is the period value meaning "on-demand", per the data model.
	PullPeriod = 0
)

// Memory allocation constants for the multiplexer's per-fd read buffers.
const (
	// ReadBufSize128k and friends are the size-bucketed pool tiers used by
	// the multiplexer when staging bytes read from a driver's descriptor
	// before handing them to Parse.
	ReadBufSize128k = 128 * 1024
	ReadBufSize256k = 256 * 1024
	ReadBufSize512k = 512 * 1024
	ReadBufSize1m   = 1024 * 1024
)
