package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"captionkit/core"

	"github.com/zaf/g711"
)

const (
	pcmMax = 32767
	pcmMin = -32768
)

var wavHeaderPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

func getWavHeaderBuffer() *bytes.Buffer {
	return wavHeaderPool.Get().(*bytes.Buffer)
}

func putWavHeaderBuffer(buf *bytes.Buffer) {
	buf.Reset()
	wavHeaderPool.Put(buf)
}

// ULawBytesToPCM converts µ-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToULaw converts PCM bytes to µ-law
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian)
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	buf := getWavHeaderBuffer()
	defer putWavHeaderBuffer(buf)

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(WAVHeaderSize-8+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)
	return result, nil
}

// WAVHeaderSize is the size of the canonical header written by PCMBytesToWavBytes.
const WAVHeaderSize = 44

// StripWAVHeaderIfPresent returns raw PCM bytes if input starts with a RIFF/WAVE header.
// If the input is not a WAV file, it returns the input unchanged.
func StripWAVHeaderIfPresent(chunk []byte) ([]byte, error) {
	if len(chunk) < 12 {
		return chunk, nil
	}
	if !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return chunk, nil
	}

	i := 12
	for i+8 <= len(chunk) {
		chunkID := string(chunk[i : i+4])
		chunkSize := binary.LittleEndian.Uint32(chunk[i+4 : i+8])
		next := i + 8 + int(chunkSize)

		if chunkID == "data" {
			if next > len(chunk) {
				return nil, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			return chunk[i+8 : next], nil
		}

		// chunks are padded to an even boundary
		if chunkSize%2 != 0 {
			next++
		}
		if next > len(chunk) {
			break
		}
		i = next
	}

	return nil, errors.New("invalid WAV: data chunk not found")
}

// WAVFormat reads channel count and sample rate from a 16-bit PCM WAV header.
func WAVFormat(chunk []byte) (channels, sampleRate int, err error) {
	if len(chunk) < 12 || !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return 0, 0, errors.New("not a WAV file")
	}
	i := 12
	for i+8 <= len(chunk) {
		chunkID := string(chunk[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(chunk[i+4 : i+8]))
		if chunkID == "fmt " {
			if chunkSize < 16 || i+8+16 > len(chunk) {
				return 0, 0, errors.New("invalid WAV: short fmt chunk")
			}
			body := chunk[i+8:]
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return 0, 0, fmt.Errorf("unsupported WAV encoding %d", format)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return 0, 0, fmt.Errorf("unsupported WAV sample size %d", bits)
			}
			return int(binary.LittleEndian.Uint16(body[2:4])), int(binary.LittleEndian.Uint32(body[4:8])), nil
		}
		next := i + 8 + chunkSize
		if chunkSize%2 != 0 {
			next++
		}
		i = next
	}
	return 0, 0, errors.New("invalid WAV: fmt chunk not found")
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm)%2 != 0 {
		return errors.New("PCM data must have even length (16-bit samples)")
	}
	if numChannels <= 0 {
		return errors.New("channel count must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// PCMDuration returns the play time of 16-bit PCM data.
func PCMDuration(pcmLen, numChannels, sampleRate int) float64 {
	if numChannels <= 0 || sampleRate <= 0 {
		return 0
	}
	return float64(pcmLen/(2*numChannels)) / float64(sampleRate)
}

// RMS returns the root-mean-square energy of 16-bit PCM, normalized to [0,1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// ToPCM converts a chunk to 16-bit PCM with the requested channel count and
// sample rate. Chunks that already match are returned unchanged.
func ToPCM(input core.AudioChunk, targetChannels, targetSampleRate int) (core.AudioChunk, error) {
	switch input.Format {
	case core.PCM:
	case core.ULAW:
		input.Data = ULawBytesToPCM(input.Data)
		input.Format = core.PCM
	case core.ALAW:
		input.Data = ALawBytesToPCM(input.Data)
		input.Format = core.PCM
	default:
		return core.AudioChunk{}, fmt.Errorf("unsupported format for PCM conversion: %s", input.Format)
	}

	if targetChannels > 0 && input.Channels != targetChannels {
		pcm, err := convertChannels(input.Data, input.Channels, targetChannels)
		if err != nil {
			return core.AudioChunk{}, err
		}
		input.Data = pcm
		input.Channels = targetChannels
	}

	if targetSampleRate > 0 && input.SampleRate != targetSampleRate {
		input.Data = resampleLinear(input.Data, input.Channels, input.SampleRate, targetSampleRate)
		input.SampleRate = targetSampleRate
	}
	return input, nil
}

func convertChannels(pcm []byte, fromChannels, toChannels int) ([]byte, error) {
	if fromChannels == toChannels {
		return pcm, nil
	}
	if fromChannels == 1 && toChannels == 2 {
		return monoToStereo(pcm), nil
	}
	if fromChannels == 2 && toChannels == 1 {
		return stereoToMono(pcm), nil
	}
	return nil, fmt.Errorf("unsupported channel conversion: %d to %d", fromChannels, toChannels)
}

func monoToStereo(monoPCM []byte) []byte {
	samples := len(monoPCM) / 2
	result := make([]byte, samples*4)
	for i := 0; i < samples; i++ {
		result[i*4] = monoPCM[i*2]
		result[i*4+1] = monoPCM[i*2+1]
		result[i*4+2] = monoPCM[i*2]
		result[i*4+3] = monoPCM[i*2+1]
	}
	return result
}

func stereoToMono(stereoPCM []byte) []byte {
	samples := len(stereoPCM) / 4
	result := make([]byte, samples*2)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(stereoPCM[i*4 : i*4+2]))
		right := int16(binary.LittleEndian.Uint16(stereoPCM[i*4+2 : i*4+4]))
		binary.LittleEndian.PutUint16(result[i*2:], uint16(int16((int(left)+int(right))/2)))
	}
	return result
}

// resampleLinear is good enough for speech headed to a transcription model.
func resampleLinear(pcm []byte, channels, fromRate, toRate int) []byte {
	if fromRate <= 0 || toRate <= 0 || channels <= 0 {
		return pcm
	}
	inFrames := len(pcm) / (2 * channels)
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(toRate) / int64(fromRate))
	out := make([]byte, outFrames*2*channels)
	ratio := float64(fromRate) / float64(toRate)

	sample := func(frame, ch int) float64 {
		if frame >= inFrames {
			frame = inFrames - 1
		}
		off := (frame*channels + ch) * 2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	}

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		for ch := 0; ch < channels; ch++ {
			v := sample(idx, ch)*(1-frac) + sample(idx+1, ch)*frac
			v = math.Max(pcmMin, math.Min(pcmMax, math.Round(v)))
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(int16(v)))
		}
	}
	return out
}
