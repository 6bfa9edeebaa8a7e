// Package filterbank reads and writes SIGPROC filterbank (.fil) files.
//
// A file is a keyword header framed by HEADER_START/HEADER_END followed by
// samples laid out as [time][if][channel], little endian.
package filterbank

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	headerStart = "HEADER_START"
	headerEnd   = "HEADER_END"

	// maxKeywordLen guards against reading garbage as a header.
	maxKeywordLen = 80
)

// ErrNotFilterbank reports a file that does not start with HEADER_START.
var ErrNotFilterbank = errors.New("not a SIGPROC filterbank file")

// Header holds the keywords this package understands.
type Header struct {
	SourceName  string  `json:"source_name"`
	RawDataFile string  `json:"rawdatafile,omitempty"`
	MachineID   int32   `json:"machine_id"`
	TelescopeID int32   `json:"telescope_id"`
	DataType    int32   `json:"data_type"`
	NChans      int32   `json:"nchans"`
	NBits       int32   `json:"nbits"`
	NIFs        int32   `json:"nifs"`
	NBeams      int32   `json:"nbeams"`
	IBeam       int32   `json:"ibeam"`
	FCh1        float64 `json:"fch1"`
	FOff        float64 `json:"foff"`
	TStart      float64 `json:"tstart"`
	TSamp       float64 `json:"tsamp"`
	SrcRAJ      float64 `json:"src_raj"`
	SrcDEJ      float64 `json:"src_dej"`
	AzStart     float64 `json:"az_start"`
	ZaStart     float64 `json:"za_start"`
}

// BytesPerSample returns the storage size of one sample.
func (h Header) BytesPerSample() int {
	return int(h.NBits) / 8
}

// Validate checks the fields needed to locate samples.
func (h Header) Validate() error {
	if h.NChans <= 0 {
		return fmt.Errorf("nchans must be positive, got %d", h.NChans)
	}
	if h.NIFs <= 0 {
		return fmt.Errorf("nifs must be positive, got %d", h.NIFs)
	}
	switch h.NBits {
	case 8, 16, 32:
	default:
		return fmt.Errorf("unsupported nbits %d", h.NBits)
	}
	return nil
}

type headerReader struct {
	r *bufio.Reader
	n int64
}

func (hr *headerReader) read(p []byte) error {
	n, err := io.ReadFull(hr.r, p)
	hr.n += int64(n)
	return err
}

func (hr *headerReader) int32() (int32, error) {
	var b [4]byte
	if err := hr.read(b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func (hr *headerReader) float64() (float64, error) {
	var b [8]byte
	if err := hr.read(b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func (hr *headerReader) string() (string, error) {
	n, err := hr.int32()
	if err != nil {
		return "", err
	}
	if n <= 0 || n > maxKeywordLen {
		return "", fmt.Errorf("implausible header string length %d", n)
	}
	b := make([]byte, n)
	if err := hr.read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadHeader decodes the header and returns it with its size in bytes.
func ReadHeader(r io.Reader) (Header, int64, error) {
	hr := &headerReader{r: bufio.NewReader(r)}
	var h Header

	first, err := hr.string()
	if err != nil || first != headerStart {
		return h, 0, ErrNotFilterbank
	}

	for {
		key, err := hr.string()
		if err != nil {
			return h, 0, fmt.Errorf("read header keyword: %w", err)
		}
		if key == headerEnd {
			return h, hr.n, nil
		}

		var ierr error
		switch key {
		case "source_name":
			h.SourceName, ierr = hr.string()
		case "rawdatafile":
			h.RawDataFile, ierr = hr.string()
		case "machine_id":
			h.MachineID, ierr = hr.int32()
		case "telescope_id":
			h.TelescopeID, ierr = hr.int32()
		case "data_type":
			h.DataType, ierr = hr.int32()
		case "nchans":
			h.NChans, ierr = hr.int32()
		case "nbits":
			h.NBits, ierr = hr.int32()
		case "nifs":
			h.NIFs, ierr = hr.int32()
		case "nbeams":
			h.NBeams, ierr = hr.int32()
		case "ibeam":
			h.IBeam, ierr = hr.int32()
		case "barycentric", "pulsarcentric":
			_, ierr = hr.int32()
		case "fch1":
			h.FCh1, ierr = hr.float64()
		case "foff":
			h.FOff, ierr = hr.float64()
		case "tstart":
			h.TStart, ierr = hr.float64()
		case "tsamp":
			h.TSamp, ierr = hr.float64()
		case "src_raj":
			h.SrcRAJ, ierr = hr.float64()
		case "src_dej":
			h.SrcDEJ, ierr = hr.float64()
		case "az_start":
			h.AzStart, ierr = hr.float64()
		case "za_start":
			h.ZaStart, ierr = hr.float64()
		case "refdm", "period":
			_, ierr = hr.float64()
		default:
			return h, 0, fmt.Errorf("unknown header keyword %q", key)
		}
		if ierr != nil {
			return h, 0, fmt.Errorf("read header value %s: %w", key, ierr)
		}
	}
}

type headerWriter struct {
	w   io.Writer
	err error
}

func (hw *headerWriter) string(s string) {
	if hw.err != nil {
		return
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	if _, hw.err = hw.w.Write(n[:]); hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *headerWriter) int32(key string, v int32) {
	hw.string(key)
	if hw.err != nil {
		return
	}
	hw.err = binary.Write(hw.w, binary.LittleEndian, v)
}

func (hw *headerWriter) float64(key string, v float64) {
	hw.string(key)
	if hw.err != nil {
		return
	}
	hw.err = binary.Write(hw.w, binary.LittleEndian, v)
}

// WriteHeader encodes h.
func WriteHeader(w io.Writer, h Header) error {
	hw := &headerWriter{w: w}
	hw.string(headerStart)
	if h.SourceName != "" {
		hw.string("source_name")
		hw.string(h.SourceName)
	}
	if h.RawDataFile != "" {
		hw.string("rawdatafile")
		hw.string(h.RawDataFile)
	}
	hw.int32("machine_id", h.MachineID)
	hw.int32("telescope_id", h.TelescopeID)
	hw.int32("data_type", h.DataType)
	hw.float64("fch1", h.FCh1)
	hw.float64("foff", h.FOff)
	hw.int32("nchans", h.NChans)
	hw.int32("nbeams", h.NBeams)
	hw.int32("ibeam", h.IBeam)
	hw.int32("nbits", h.NBits)
	hw.float64("tstart", h.TStart)
	hw.float64("tsamp", h.TSamp)
	hw.int32("nifs", h.NIFs)
	hw.float64("src_raj", h.SrcRAJ)
	hw.float64("src_dej", h.SrcDEJ)
	hw.float64("az_start", h.AzStart)
	hw.float64("za_start", h.ZaStart)
	hw.string(headerEnd)
	return hw.err
}
