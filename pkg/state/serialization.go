package state

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer converts values of one type to and from bytes.
type Serializer[T any] interface {
	Serialize(value T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

// MsgPackSerializer encodes values as MessagePack, gzipping payloads
// above a size threshold. A leading marker byte records whether the
// payload is compressed.
type MsgPackSerializer struct {
	// UseCompression enables gzip compression for large payloads
	UseCompression bool
	// CompressionThreshold is the minimum size to trigger compression
	CompressionThreshold int
}

// NewMsgPackSerializer creates a MsgPack serializer with compression for
// payloads of 1KB and above.
func NewMsgPackSerializer() *MsgPackSerializer {
	return &MsgPackSerializer{
		UseCompression:       true,
		CompressionThreshold: 1024,
	}
}

// Marshal serializes a value to bytes.
func (s *MsgPackSerializer) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}

	if s.UseCompression && len(data) >= s.CompressionThreshold {
		compressed, err := s.compress(data)
		if err == nil {
			return append([]byte{1}, compressed...), nil
		}
		// Fall through to uncompressed on compression failure.
	}

	return append([]byte{0}, data...), nil
}

// Unmarshal deserializes bytes produced by Marshal.
func (s *MsgPackSerializer) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrInvalidData
	}

	marker := data[0]
	payload := data[1:]

	if marker == 1 {
		decompressed, err := s.decompress(payload)
		if err != nil {
			return err
		}
		payload = decompressed
	}

	return msgpack.Unmarshal(payload, v)
}

func (s *MsgPackSerializer) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *MsgPackSerializer) decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// JSONSerializer encodes values as JSON. Useful for debugging and for
// payloads read by the browser client.
type JSONSerializer struct {
	// Pretty enables indented output
	Pretty bool
}

// NewJSONSerializer creates a compact JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal serializes a value to JSON.
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	if s.Pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Unmarshal deserializes JSON to a value.
func (s *JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GenericSerializer implements Serializer[T] over MessagePack.
type GenericSerializer[T any] struct {
	inner *MsgPackSerializer
}

// NewGenericSerializer creates a serializer for values of type T.
func NewGenericSerializer[T any]() *GenericSerializer[T] {
	return &GenericSerializer[T]{
		inner: NewMsgPackSerializer(),
	}
}

// Serialize serializes a value.
func (s *GenericSerializer[T]) Serialize(value T) ([]byte, error) {
	return s.inner.Marshal(value)
}

// Deserialize deserializes a value.
func (s *GenericSerializer[T]) Deserialize(data []byte) (T, error) {
	var value T
	err := s.inner.Unmarshal(data, &value)
	return value, err
}
