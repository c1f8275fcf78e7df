package audiocore

import "fmt"

// DeviceInfo describes one capture device as reported by a backend.
type DeviceInfo struct {
	Index      int
	Name       string
	ID         string
	Default    bool
	Monitor    bool    // loopback of an output sink
	Channels   int     // maximum input channels, 0 when unknown
	SampleRate float64 // default sample rate, 0 when unknown
}

func (d DeviceInfo) String() string {
	s := fmt.Sprintf("%d: %s", d.Index, d.Name)
	if d.ID != "" && d.ID != d.Name {
		s += " (" + d.ID + ")"
	}
	if d.Default {
		s += " [default]"
	}
	return s
}
