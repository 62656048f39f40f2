package model

// PulseMarker is the point that sweeps along an active observation link.
type PulseMarker struct {
	Position Motion  `json:"position"`
	Scale    float64 `json:"scale"`
	Visible  bool    `json:"visible"`
}

// ObservationLink relates one tracker to the target for a single frame.
// Index is the tracker's position among trackers and staggers the pulse.
type ObservationLink struct {
	TrackerID string      `json:"tracker_id"`
	Index     int         `json:"index"`
	EndpointA Motion      `json:"a"`
	EndpointB Motion      `json:"b"`
	Active    bool        `json:"active"`
	Opacity   float64     `json:"opacity"`
	Pulse     PulseMarker `json:"pulse"`
}

// CameraState is derived from elapsed time every frame.
type CameraState struct {
	Angle           float64 `json:"angle"`
	Radius          float64 `json:"radius"`
	HeightBase      float64 `json:"height_base"`
	HeightAmplitude float64 `json:"height_amplitude"`
	Position        Motion  `json:"position"`
	Target          Motion  `json:"target"`
	FOV             float64 `json:"fov"` // vertical, degrees
	Aspect          float64 `json:"aspect"`
	Near            float64 `json:"near"`
	Far             float64 `json:"far"`
}
