package pulse

import (
	"encoding/hex"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/errors"
)

// AutoSource selects the monitor of the default output sink.
const AutoSource = "auto"

const monitorSuffix = ".monitor"

// ListDevices enumerates PulseAudio capture devices, monitors included.
func ListDevices() ([]audiocore.DeviceInfo, error) {
	ctx, err := malgo.InitContext([]malgo.Backend{malgo.BackendPulseaudio}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentPulse).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component(componentPulse).
			Category(errors.CategoryAudioSource).
			Context("operation", "enumerate_devices").
			Build()
	}
	return describeDevices(infos), nil
}

func describeDevices(infos []malgo.DeviceInfo) []audiocore.DeviceInfo {
	devices := make([]audiocore.DeviceInfo, 0, len(infos))
	for i := range infos {
		info := &infos[i]
		id, err := hexToASCII(info.ID.String())
		if err != nil {
			id = info.ID.String()
		}
		id = strings.TrimRight(id, "\x00")
		name := info.Name()
		devices = append(devices, audiocore.DeviceInfo{
			Index:   i,
			Name:    name,
			ID:      id,
			Default: info.IsDefault == 1,
			Monitor: strings.HasSuffix(id, monitorSuffix) || strings.HasPrefix(name, "Monitor of "),
		})
	}
	return devices
}

// SelectDevice picks the device for a configured source name. AutoSource
// prefers the default device when it is a monitor, then any monitor, then the
// default device. Other names match the decoded device ID exactly, then the
// device name exactly, then a substring of the device name.
func SelectDevice(devices []audiocore.DeviceInfo, source string) (audiocore.DeviceInfo, error) {
	if len(devices) == 0 {
		return audiocore.DeviceInfo{}, errors.Newf("no capture devices available").
			Component(componentPulse).
			Category(errors.CategoryNotFound).
			Context("source", source).
			Build()
	}

	if source == "" || strings.EqualFold(source, AutoSource) {
		return selectAuto(devices), nil
	}

	for _, d := range devices {
		if d.ID == source {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.Name == source {
			return d, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(d.Name, source) {
			return d, nil
		}
	}

	return audiocore.DeviceInfo{}, errors.Newf("no capture source matches %q", source).
		Component(componentPulse).
		Category(errors.CategoryNotFound).
		Context("source", source).
		Context("available", len(devices)).
		Build()
}

func selectAuto(devices []audiocore.DeviceInfo) audiocore.DeviceInfo {
	var firstMonitor, firstDefault *audiocore.DeviceInfo
	for i := range devices {
		d := &devices[i]
		if d.Default && d.Monitor {
			return *d
		}
		if d.Monitor && firstMonitor == nil {
			firstMonitor = d
		}
		if d.Default && firstDefault == nil {
			firstDefault = d
		}
	}
	switch {
	case firstMonitor != nil:
		return *firstMonitor
	case firstDefault != nil:
		return *firstDefault
	default:
		return devices[0]
	}
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", errors.New(err).
			Component(componentPulse).
			Category(errors.CategoryValidation).
			Context("operation", "decode_device_id").
			Build()
	}
	return string(b), nil
}

// sampleFormat maps a malgo sample format onto PCM bit depth and float flag.
func sampleFormat(f malgo.FormatType) (bits int, isFloat bool, err error) {
	switch f {
	case malgo.FormatU8:
		return 8, false, nil
	case malgo.FormatS16:
		return 16, false, nil
	case malgo.FormatS24:
		return 24, false, nil
	case malgo.FormatS32:
		return 32, false, nil
	case malgo.FormatF32:
		return 32, true, nil
	default:
		return 0, false, errors.Newf("unsupported malgo sample format %d", int(f)).
			Component(componentPulse).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Build()
	}
}

// malgoFormat maps a requested PCM bit depth onto a malgo capture format.
func malgoFormat(bits int) malgo.FormatType {
	switch bits {
	case 8:
		return malgo.FormatU8
	case 24:
		return malgo.FormatS24
	case 32:
		return malgo.FormatS32
	default:
		return malgo.FormatS16
	}
}
