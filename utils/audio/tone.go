package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Tone renders a mono 16-bit sine wave. amplitude is relative to full scale,
// so a tone of amplitude a has an RMS of a/√2.
func Tone(amplitude, frequency float64, sampleRate int, d time.Duration) []byte {
	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)) * pcmMax
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

// Silence renders d of mono digital silence.
func Silence(sampleRate int, d time.Duration) []byte {
	return make([]byte, int(int64(sampleRate)*int64(d)/int64(time.Second))*2)
}
