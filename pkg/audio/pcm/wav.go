package pcm

import (
	"bytes"
	"encoding/binary"
)

// WAV wraps samples in a canonical 44-byte RIFF/WAVE header.
func (f Format) WAV(samples []int16) []byte {
	dataLen := uint32(len(samples) * 2)
	var buf bytes.Buffer
	buf.Grow(44 + int(dataLen))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels()))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate()))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate()*f.Channels()*2))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels()*2))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Depth()))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(Bytes(samples))
	return buf.Bytes()
}
