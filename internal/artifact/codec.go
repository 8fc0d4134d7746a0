package artifact

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the envelope version written by Encode.
const FormatVersion = 1

// Envelope is the on-disk wrapper around every artifact. Payload is decoded
// by the codec registered for Kind.
type Envelope struct {
	Kind          string          `cbor:"kind"`
	FormatVersion int             `cbor:"format_version"`
	Payload       cbor.RawMessage `cbor:"payload"`
}

// DecodeFunc turns an envelope payload into a ready-to-use object.
type DecodeFunc func(payload []byte) (any, error)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: cbor dec mode: %v", err))
	}
}

// Codecs maps artifact kinds to decoders. Safe for concurrent use.
type Codecs struct {
	mu      sync.RWMutex
	decoder map[string]DecodeFunc
}

// NewCodecs returns an empty registry.
func NewCodecs() *Codecs {
	return &Codecs{decoder: make(map[string]DecodeFunc)}
}

// Register adds a decoder for kind, replacing any previous one.
func (c *Codecs) Register(kind string, fn DecodeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoder[kind] = fn
}

// Kinds lists the registered kinds, sorted.
func (c *Codecs) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]string, 0, len(c.decoder))
	for k := range c.decoder {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Decode parses an envelope and hands its payload to the matching decoder.
func (c *Codecs) Decode(data []byte) (any, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	fn, ok := c.decoder[env.Kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no codec registered for artifact kind %q", env.Kind)
	}

	obj, err := fn(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return obj, nil
}

// DecodeEnvelope parses only the envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to parse artifact envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("artifact envelope has no kind")
	}
	if env.FormatVersion != FormatVersion {
		return Envelope{}, fmt.Errorf("unsupported artifact format version %d (want %d)", env.FormatVersion, FormatVersion)
	}
	return env, nil
}

// Encode wraps v in an envelope of the given kind.
func Encode(kind string, v any) ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return encMode.Marshal(Envelope{Kind: kind, FormatVersion: FormatVersion, Payload: payload})
}

// DecodePayload strictly unmarshals a payload into v; unknown fields are errors.
func DecodePayload(payload []byte, v any) error {
	return decMode.Unmarshal(payload, v)
}
