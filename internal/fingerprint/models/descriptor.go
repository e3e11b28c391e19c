package models

// Descriptor is the set of browser signals a fingerprint hash is derived from.
type Descriptor struct {
	UserAgent      string   `json:"user_agent"`
	Screen         string   `json:"screen"`
	Timezone       string   `json:"timezone"`
	CanvasHash     string   `json:"canvas_hash"`
	WebGLHash      string   `json:"webgl_hash"`
	Fonts          []string `json:"fonts"`
	TouchSupport   bool     `json:"touch_support"`
	HardwareCores  int      `json:"hardware_cores"`
	DeviceMemoryGB float64  `json:"device_memory_gb"`
}

// DeviceInfo is the user-agent derived summary attached to validation logs.
type DeviceInfo struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}
