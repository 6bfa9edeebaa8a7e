package filterbank

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// File is an open filterbank file. Reads use ReadAt and are safe for
// concurrent use.
type File struct {
	Header Header

	path       string
	f          *os.File
	dataOffset int64
	spectra    int
}

// Open reads the header and sizes the data section.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	h, n, err := ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.Validate(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	frame := int64(h.NChans) * int64(h.NIFs) * int64(h.BytesPerSample())
	spectra := (info.Size() - n) / frame
	if spectra <= 0 {
		f.Close()
		return nil, fmt.Errorf("%s: no spectra after header", path)
	}
	return &File{Header: h, path: path, f: f, dataOffset: n, spectra: int(spectra)}, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Spectra returns the number of time samples.
func (f *File) Spectra() int {
	return f.spectra
}

// Close releases the file handle.
func (f *File) Close() error {
	return f.f.Close()
}

// ReadChannels reads fine channels [start, start+count) for every time sample
// and IF. The result is row-major with Spectra()*NIFs rows of count columns.
func (f *File) ReadChannels(start, count int) ([]float32, error) {
	h := f.Header
	if start < 0 || count <= 0 || start+count > int(h.NChans) {
		return nil, fmt.Errorf("channels [%d, %d) outside file with %d channels", start, start+count, h.NChans)
	}
	bps := h.BytesPerSample()
	rows := f.spectra * int(h.NIFs)
	out := make([]float32, rows*count)
	buf := make([]byte, count*bps)

	for row := 0; row < rows; row++ {
		off := f.dataOffset + (int64(row)*int64(h.NChans)+int64(start))*int64(bps)
		if _, err := f.f.ReadAt(buf, off); err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		decode(out[row*count:(row+1)*count], buf, h.NBits)
	}
	return out, nil
}

func decode(dst []float32, src []byte, nbits int32) {
	switch nbits {
	case 8:
		for i := range dst {
			dst[i] = float32(src[i])
		}
	case 16:
		for i := range dst {
			dst[i] = float32(binary.LittleEndian.Uint16(src[2*i:]))
		}
	case 32:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}
}

// Write encodes a 32-bit float filterbank. data holds rows of h.NChans
// samples in [time][if] order; h.NBits is forced to 32.
func Write(w io.Writer, h Header, data []float32) error {
	h.NBits = 32
	if err := h.Validate(); err != nil {
		return err
	}
	frame := int(h.NChans) * int(h.NIFs)
	if len(data) == 0 || len(data)%frame != 0 {
		return fmt.Errorf("data length %d is not a multiple of nchans*nifs=%d", len(data), frame)
	}
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, h); err != nil {
		return err
	}
	var b [4]byte
	for _, x := range data {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(x))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a 32-bit filterbank to path.
func WriteFile(path string, h Header, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, h, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
