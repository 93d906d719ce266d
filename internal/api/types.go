package api

// Profile сведения об устройстве (/profile)
type Profile struct {
	DeviceID    string `json:"device_id"`
	Status      string `json:"status"`
	CPUModel    string `json:"cpu_model"`
	CPUCores    int    `json:"cpu_cores"`
	CPUThreads  int    `json:"cpu_threads"`
	Memory      string `json:"memory"`
	Disk        string `json:"disk"`
	IPAddress   string `json:"ip_address"`
	NetworkType string `json:"network_type"`
	Hostname    string `json:"hostname"`
	OSPlatform  string `json:"os_platform"`
	OSVersion   string `json:"os_version"`
}

// WipeRequest тело POST /wipe/start
type WipeRequest struct {
	Disk     string `json:"disk"`
	WipeMode string `json:"wipe_mode"`
}

// EncryptRequest тело POST /encrypt/start
type EncryptRequest struct {
	Drive    string   `json:"drive"`
	Encrypt  bool     `json:"encrypt"`
	Ciphers  []string `json:"ciphers"`
	Wipe     bool     `json:"wipe"`
	WipeMode string   `json:"wipe_mode"`
	Disk     string   `json:"disk"`
}

// StartResponse ответ на start команду; поля необязательны
type StartResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}
