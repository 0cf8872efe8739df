package session

import (
	"errors"

	"hark/artifact"
	"hark/platform"
	"hark/recorder"
	"hark/transcriber"
)

// Kind groups every failure the controller can surface.
type Kind int

const (
	KindNone Kind = iota
	PermissionDenied
	DeviceError
	ArtifactMissing
	ConfigurationMissing
	TranscriptionError
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case DeviceError:
		return "device_error"
	case ArtifactMissing:
		return "artifact_missing"
	case ConfigurationMissing:
		return "configuration_missing"
	case TranscriptionError:
		return "transcription_error"
	}
	return "none"
}

// Classify maps err onto the taxonomy. A nil error is KindNone; anything
// unrecognised counts as a transcription failure.
func Classify(err error) Kind {
	var devErr *recorder.DeviceError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, platform.ErrPermissionDenied):
		return PermissionDenied
	case errors.Is(err, transcriber.ErrConfigurationMissing):
		return ConfigurationMissing
	case errors.Is(err, artifact.ErrMissing):
		return ArtifactMissing
	case errors.As(err, &devErr):
		return DeviceError
	}
	return TranscriptionError
}

// Message renders err as the status line shown to the user.
func Message(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case PermissionDenied:
		return "Microphone permission not granted"
	case ConfigurationMissing:
		return "API key not configured (set HARK_API_KEY)"
	case ArtifactMissing:
		return "Recording is empty"
	case DeviceError:
		var devErr *recorder.DeviceError
		errors.As(err, &devErr)
		return "Audio device error: " + devErr.Err.Error()
	}

	var apiErr *transcriber.APIError
	if errors.As(err, &apiErr) {
		return "Transcription failed: " + apiErr.Body
	}
	var netErr *transcriber.NetworkError
	if errors.As(err, &netErr) {
		return "Transcription failed: network error"
	}
	return "Transcription failed: " + err.Error()
}
