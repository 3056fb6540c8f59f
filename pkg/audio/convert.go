package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
)

// Conversion errors.
var (
	ErrInvalidChannels = errors.New("audio: channel count must be 1 or 2")
	ErrInvalidRate     = errors.New("audio: sample rate must be positive")
)

// Convert resamples and channel-converts normalized samples. It is
// pure and deterministic: identical inputs yield bit-identical
// outputs. Resampling uses linear interpolation per source frame;
// channel conversion happens after resampling as a separate step
// (mono->stereo duplicates, stereo->mono averages).
func Convert(samples []float32, srcRate, srcChannels, dstRate, dstChannels int) ([]float32, error) {
	if srcChannels < 1 || srcChannels > 2 || dstChannels < 1 || dstChannels > 2 {
		return nil, fmt.Errorf("%w: src=%d dst=%d", ErrInvalidChannels, srcChannels, dstChannels)
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: src=%d dst=%d", ErrInvalidRate, srcRate, dstRate)
	}

	out := resample(samples, srcRate, dstRate, srcChannels)

	switch {
	case srcChannels == 1 && dstChannels == 2:
		out = monoToStereo(out)
	case srcChannels == 2 && dstChannels == 1:
		out = stereoToMono(out)
	}

	return out, nil
}

// resample converts interleaved samples between rates with linear
// interpolation, preserving the channel count.
func resample(samples []float32, srcRate, dstRate, channels int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	srcFrames := len(samples) / channels
	if srcFrames == 0 {
		return nil
	}

	ratio := float64(dstRate) / float64(srcRate)
	dstFrames := int(float64(srcFrames) * ratio)
	out := make([]float32, dstFrames*channels)

	for i := 0; i < dstFrames; i++ {
		pos := float64(i) / ratio
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		t := float32(pos - float64(lo))

		for ch := 0; ch < channels; ch++ {
			if hi >= srcFrames {
				out[i*channels+ch] = samples[(srcFrames-1)*channels+ch]
				continue
			}
			a := samples[lo*channels+ch]
			b := samples[hi*channels+ch]
			out[i*channels+ch] = a*(1-t) + b*t
		}
	}

	return out
}

// monoToStereo duplicates each sample into an interleaved pair.
func monoToStereo(samples []float32) []float32 {
	out := make([]float32, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// stereoToMono averages each interleaved pair.
func stereoToMono(samples []float32) []float32 {
	out := make([]float32, len(samples)/2)
	for i := range out {
		out[i] = (samples[i*2] + samples[i*2+1]) / 2
	}
	return out
}

// EncodePCM16 converts normalized samples to 16-bit signed
// little-endian PCM, clamping to [-1, 1] first.
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

// DecodePCM16 converts 16-bit signed little-endian PCM bytes to
// normalized samples. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32767
	}
	return samples
}

// EncodeBase64PCM16 encodes samples as the protocol's wire audio
// payload: PCM16 little-endian, then standard base64.
func EncodeBase64PCM16(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// DecodeBase64PCM16 decodes a wire audio payload to normalized samples.
func DecodeBase64PCM16(payload string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("audio: decode payload: %w", err)
	}
	return DecodePCM16(data), nil
}
