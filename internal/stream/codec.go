package stream

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

// ErrMalformedFrame is returned when a streamed message lacks required fields.
var ErrMalformedFrame = errors.New("stream: malformed frame message")

// Frame is a decoded frame as received by a stream client.
type Frame struct {
	UniqueID    int
	ImageNumber int
	TimeStamp   time.Time
	Elapsed     time.Duration
	Dims        []int
	DataType    ndarray.DataType
	Data        []float64
}

// Array rebuilds an ndarray from the frame, narrowing Data to DataType.
func (f Frame) Array() (*ndarray.Array, error) {
	a, err := ndarray.New(f.Dims, f.DataType)
	if err != nil {
		return nil, err
	}
	if len(f.Data) != a.Len() {
		return nil, fmt.Errorf("%w: %d values for dims %v", ErrMalformedFrame, len(f.Data), f.Dims)
	}
	a.Accumulate(f.Data)
	a.UniqueID = f.UniqueID
	a.ImageNumber = f.ImageNumber
	a.TimeStamp = f.TimeStamp
	a.Elapsed = f.Elapsed
	return a, nil
}

// Encode converts an array into the wire message. timestamp_ns is carried
// as a decimal string because a JSON number cannot hold it exactly.
func Encode(a *ndarray.Array) *structpb.Struct {
	dims := make([]*structpb.Value, len(a.Dims))
	for i, d := range a.Dims {
		dims[i] = structpb.NewNumberValue(float64(d))
	}
	vals := a.Float64s()
	data := make([]*structpb.Value, len(vals))
	for i, v := range vals {
		data[i] = structpb.NewNumberValue(v)
	}

	fields := map[string]*structpb.Value{
		"unique_id":    structpb.NewNumberValue(float64(a.UniqueID)),
		"image_number": structpb.NewNumberValue(float64(a.ImageNumber)),
		"elapsed_ns":   structpb.NewNumberValue(float64(a.Elapsed.Nanoseconds())),
		"dims":         structpb.NewListValue(&structpb.ListValue{Values: dims}),
		"data_type":    structpb.NewStringValue(a.DataType.String()),
		"data":         structpb.NewListValue(&structpb.ListValue{Values: data}),
	}
	if !a.TimeStamp.IsZero() {
		fields["timestamp_ns"] = structpb.NewStringValue(strconv.FormatInt(a.TimeStamp.UnixNano(), 10))
	}
	return &structpb.Struct{Fields: fields}
}

// Decode converts a wire message back into a Frame.
func Decode(msg *structpb.Struct) (Frame, error) {
	var f Frame
	fields := msg.GetFields()

	num := func(key string) (float64, error) {
		v, ok := fields[key]
		if !ok {
			return 0, fmt.Errorf("%w: missing %s", ErrMalformedFrame, key)
		}
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedFrame, key)
		}
		return n.NumberValue, nil
	}
	list := func(key string) ([]float64, error) {
		v, ok := fields[key]
		if !ok || v.GetListValue() == nil {
			return nil, fmt.Errorf("%w: missing list %s", ErrMalformedFrame, key)
		}
		out := make([]float64, len(v.GetListValue().GetValues()))
		for i, e := range v.GetListValue().GetValues() {
			n, ok := e.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is not a number", ErrMalformedFrame, key, i)
			}
			out[i] = n.NumberValue
		}
		return out, nil
	}

	id, err := num("unique_id")
	if err != nil {
		return f, err
	}
	img, err := num("image_number")
	if err != nil {
		return f, err
	}
	elapsed, err := num("elapsed_ns")
	if err != nil {
		return f, err
	}
	dims, err := list("dims")
	if err != nil {
		return f, err
	}
	if f.Data, err = list("data"); err != nil {
		return f, err
	}

	dt, ok := fields["data_type"]
	if !ok {
		return f, fmt.Errorf("%w: missing data_type", ErrMalformedFrame)
	}
	if f.DataType, err = ndarray.ParseDataType(dt.GetStringValue()); err != nil {
		return f, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if ts, ok := fields["timestamp_ns"]; ok {
		ns, err := strconv.ParseInt(ts.GetStringValue(), 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: timestamp_ns: %v", ErrMalformedFrame, err)
		}
		f.TimeStamp = time.Unix(0, ns)
	}

	f.UniqueID = int(id)
	f.ImageNumber = int(img)
	f.Elapsed = time.Duration(elapsed)
	f.Dims = make([]int, len(dims))
	for i, d := range dims {
		f.Dims[i] = int(d)
	}
	return f, nil
}
