package models

// ResourceSnapshot is one reading of host resources.
type ResourceSnapshot struct {
	CPUPercent       float64 `json:"cpuPercent"`
	MemoryUsedBytes  uint64  `json:"memoryUsedBytes"`
	MemoryTotalBytes uint64  `json:"memoryTotalBytes"`
	DiskUsedBytes    uint64  `json:"diskUsedBytes"`
	DiskTotalBytes   uint64  `json:"diskTotalBytes"`
	DiskFreeBytes    uint64  `json:"diskFreeBytes"`
}

// TelemetrySnapshot is the document pushed on each telemetry tick.
type TelemetrySnapshot struct {
	Resources     ResourceSnapshot `json:"resourceSnapshot"`
	Inventory     ContentInventory `json:"contentInventory"`
	UptimeSeconds int64            `json:"uptimeSeconds"`
}
