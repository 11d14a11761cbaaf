package audio

import "github.com/gordonklaus/portaudio"

// DeviceInfo describes one audio device as reported by the backend.
type DeviceInfo struct {
	Index       int
	Name        string
	ChannelsIn  int
	ChannelsOut int
	SampleRate  float64
}

// ListDevices enumerates the audio devices portaudio can see, so users
// can pick input/output device indices for Config.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = DeviceInfo{
			Index:       i,
			Name:        d.Name,
			ChannelsIn:  d.MaxInputChannels,
			ChannelsOut: d.MaxOutputChannels,
			SampleRate:  d.DefaultSampleRate,
		}
	}
	return out, nil
}
