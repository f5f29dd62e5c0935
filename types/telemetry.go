package types

// ---- Telemetry document served at /system-info ----

type CPU struct {
	Name  string  `json:"name"`
	Temp  float64 `json:"temp"`
	Load  float64 `json:"load"`
	Power float64 `json:"power"`
}

type RAM struct {
	Used    float64 `json:"used"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percent"`
}

type DiscreteGPU struct {
	Name     string  `json:"name"`
	Temp     float64 `json:"temp"`
	Load     float64 `json:"load"`
	Power    float64 `json:"power"`
	MemUsed  int     `json:"mem_used"`
	MemTotal int     `json:"mem_total"`
}

type IntegratedGPU struct {
	Name string  `json:"name"`
	Temp float64 `json:"temp"`
	Load float64 `json:"load"`
}

type Disk struct {
	Name string  `json:"name"`
	Temp float64 `json:"temp"`
	Load float64 `json:"load"`
}

type Network struct {
	Name     string  `json:"name"`
	Download float64 `json:"download"` // KB/s
	Upload   float64 `json:"upload"`   // KB/s
}

// SystemData is one telemetry sample. Sections the server omits stay zero.
type SystemData struct {
	CPU           CPU           `json:"cpu"`
	RAM           RAM           `json:"ram"`
	GPUDiscrete   DiscreteGPU   `json:"gpu_discrete"`
	GPUIntegrated IntegratedGPU `json:"gpu_integrated"`
	Disks         []Disk        `json:"disk"`
	Network       Network       `json:"network"`
}
