package net

import (
	"fmt"

	"go.uber.org/zap"
)

// Decoder turns a payload into a typed message value. Decoders are pure and
// must not retain the byte slice.
type Decoder func(payload []byte) (any, error)

// Registry maps message type codes to payload decoders. Registration
// happens at startup; lookups are game-loop only afterwards.
type Registry struct {
	decoders map[uint16]Decoder
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		decoders: make(map[uint16]Decoder, 32),
		log:      log,
	}
}

func (r *Registry) Register(msgType uint16, dec Decoder) {
	if _, ok := r.decoders[msgType]; ok {
		r.log.Warn("message type registered twice", zap.Uint16("type", msgType))
	}
	r.decoders[msgType] = dec
}

// Decode resolves the decoder for the type code and runs it. Unknown type
// codes are an error: the reconciliation layer decides whether to drop.
func (r *Registry) Decode(msgType uint16, payload []byte) (any, error) {
	dec, ok := r.decoders[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type %d", msgType)
	}
	v, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("decode message type %d: %w", msgType, err)
	}
	return v, nil
}
