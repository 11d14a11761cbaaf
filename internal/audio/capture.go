package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Capture writes successive blocks of received samples to timestamped
// WAV files, for offline demodulator debugging. The file name is built
// from an strftime pattern.
type Capture struct {
	dir        string
	pattern    string
	sampleRate int
	seq        atomic.Uint64
}

// NewCapture builds a Capture that writes into dir, naming each file
// with namePattern (an strftime format string, e.g. "rx-%Y%m%d-%H%M%S.wav").
func NewCapture(dir, namePattern string, sampleRate int) (*Capture, error) {
	if _, err := strftime.Format(namePattern, time.Now()); err != nil {
		return nil, fmt.Errorf("audio: invalid capture name pattern: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Capture{dir: dir, pattern: namePattern, sampleRate: sampleRate}, nil
}

// WriteBlock writes one block of samples to a new file named from the
// current time. A sequence number is appended ahead of the extension
// so blocks captured within the same strftime-resolution second don't
// collide.
func (c *Capture) WriteBlock(samples []float32) (string, error) {
	name, err := strftime.Format(c.pattern, time.Now())
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	name = fmt.Sprintf("%s-%04d%s", name[:len(name)-len(ext)], c.seq.Add(1), ext)
	path := filepath.Join(c.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeWAV(f, samples, c.sampleRate); err != nil {
		return "", err
	}
	return path, nil
}

// writeWAV emits a minimal 16-bit mono PCM WAV file.
func writeWAV(f *os.File, samples []float32, sampleRate int) error {
	const bitsPerSample = 16
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(samples) * 2

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := f.Write(header); err != nil {
		return err
	}

	body := make([]byte, dataSize)
	for i, s := range samples {
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(body[i*2:], uint16(v))
	}
	_, err := f.Write(body)
	return err
}
