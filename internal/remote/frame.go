package remote

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/noiseablate/internal/channel"
)

// ErrBadFrame reports a view frame that cannot be decoded.
var ErrBadFrame = errors.New("malformed view frame")

// A frame is
//
//	u32 header length | header (structpb.Struct) | u32 rows | u32 cols |
//	rows*cols float32 samples | rows*cols mask bytes
//
// All integers and samples are little endian.

func encodeView(v *channel.View) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	hdr, err := structpb.NewStruct(map[string]any{
		"device":         v.Device.String(),
		"coarse_channel": v.Meta.CoarseChannel,
		"fch1":           v.Meta.FirstFreqMHz,
		"foff":           v.Meta.FreqStepMHz,
		"tsamp":          v.Meta.SampleTimeSec,
		"source_name":    v.Meta.SourceName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode view header: %w", err)
	}
	h, err := proto.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("encode view header: %w", err)
	}

	n := len(v.Data)
	buf := make([]byte, 0, 4+len(h)+8+5*n)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h)))
	buf = append(buf, h...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Rows))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Cols))
	for _, x := range v.Data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
	}
	for _, m := range v.Mask {
		if m {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf, nil
}

func decodeView(b []byte) (*channel.View, error) {
	hdr, rest, err := splitStruct(b)
	if err != nil {
		return nil, err
	}
	if len(rest) < 8 {
		return nil, fmt.Errorf("%w: missing shape", ErrBadFrame)
	}
	r := binary.LittleEndian.Uint32(rest)
	c := binary.LittleEndian.Uint32(rest[4:])
	rest = rest[8:]
	// Each sample takes 5 bytes; bound the shape before multiplying in int.
	if r == 0 || c == 0 || uint64(r)*uint64(c) > uint64(len(rest))/5 {
		return nil, fmt.Errorf("%w: shape %dx%d does not fit %d payload bytes", ErrBadFrame, r, c, len(rest))
	}
	rows, cols := int(r), int(c)
	n := rows * cols
	if len(rest) != 5*n {
		return nil, fmt.Errorf("%w: shape %dx%d does not match %d payload bytes", ErrBadFrame, rows, cols, len(rest))
	}

	f := hdr.GetFields()
	dev, err := channel.ParseDevice(f["device"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	v := &channel.View{
		Rows:   rows,
		Cols:   cols,
		Data:   make([]float32, n),
		Mask:   make([]bool, n),
		Device: dev,
		Meta: channel.Meta{
			CoarseChannel: int(f["coarse_channel"].GetNumberValue()),
			FirstFreqMHz:  f["fch1"].GetNumberValue(),
			FreqStepMHz:   f["foff"].GetNumberValue(),
			SampleTimeSec: f["tsamp"].GetNumberValue(),
			SourceName:    f["source_name"].GetStringValue(),
		},
	}
	for i := range v.Data {
		v.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(rest[4*i:]))
	}
	masks := rest[4*n:]
	for i := range v.Mask {
		v.Mask[i] = masks[i] != 0
	}
	return v, nil
}

// encodeCall prefixes a view frame with the step parameters.
func encodeCall(params map[string]any, v *channel.View) ([]byte, error) {
	p, err := structpb.NewStruct(params)
	if err != nil {
		return nil, fmt.Errorf("encode call parameters: %w", err)
	}
	h, err := proto.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode call parameters: %w", err)
	}
	frame, err := encodeView(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 4+len(h)+len(frame))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h)))
	buf = append(buf, h...)
	return append(buf, frame...), nil
}

func decodeCall(b []byte) (*structpb.Struct, *channel.View, error) {
	params, rest, err := splitStruct(b)
	if err != nil {
		return nil, nil, err
	}
	v, err := decodeView(rest)
	if err != nil {
		return nil, nil, err
	}
	return params, v, nil
}

func splitStruct(b []byte) (*structpb.Struct, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated header length", ErrBadFrame)
	}
	n := int(binary.LittleEndian.Uint32(b))
	if len(b)-4 < n {
		return nil, nil, fmt.Errorf("%w: header of %d bytes truncated", ErrBadFrame, n)
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b[4:4+n], s); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return s, b[4+n:], nil
}
