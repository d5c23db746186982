// Package wire defines the cross-language record envelope shared by every
// transport producer and consumer. Schemas here are explicit JSON rather
// than relying on language-native serialization, so a Python client and a
// Go server agree on the wire form without sharing code.
package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"scouter/pkg/apperror"
)

// RecordType discriminates the payload carried by a Record envelope.
type RecordType string

const (
	RecordSPC           RecordType = "spc"
	RecordPSI           RecordType = "psi"
	RecordCustom        RecordType = "custom"
	RecordLLM           RecordType = "llm"
	RecordObservability RecordType = "observability"
)

// Record is the common envelope every transport carries. Payload is kept
// as raw JSON so a single struct can flow through producers and consumers
// without a full union type; callers decode the kind-specific payload with
// DecodeSPC/DecodePSI/DecodeCustom/DecodeLLM once RecordType is known.
type Record struct {
	RecordType RecordType      `json:"record_type"`
	CreatedAt  time.Time       `json:"created_at"`
	Space      string          `json:"space"`
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	DriftType  string          `json:"drift_type"`
	Payload    json.RawMessage `json:"payload"`
}

// SPCPayload is the kind-specific body of an SPC record.
type SPCPayload struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// PSIPayload is the kind-specific body of a PSI record.
type PSIPayload struct {
	Feature  string `json:"feature"`
	BinID    uint32 `json:"bin_id"`
	BinCount uint32 `json:"bin_count"`
}

// CustomPayload is the kind-specific body of a Custom record.
type CustomPayload struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// LLMPayload is the kind-specific body of an LLM record.
type LLMPayload struct {
	Context map[string]any `json:"context"`
	Prompt  any            `json:"prompt,omitempty"`
}

func marshalPayload(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// NewSPCRecord builds an envelope carrying a single feature observation.
func NewSPCRecord(space, name, version string, createdAt time.Time, feature string, value float64) Record {
	return Record{
		RecordType: RecordSPC,
		CreatedAt:  createdAt,
		Space:      space,
		Name:       name,
		Version:    version,
		DriftType:  string(RecordSPC),
		Payload:    marshalPayload(SPCPayload{Feature: feature, Value: value}),
	}
}

// NewPSIRecord builds an envelope carrying a single (bin, count) pair.
func NewPSIRecord(space, name, version string, createdAt time.Time, feature string, binID, binCount uint32) Record {
	return Record{
		RecordType: RecordPSI,
		CreatedAt:  createdAt,
		Space:      space,
		Name:       name,
		Version:    version,
		DriftType:  string(RecordPSI),
		Payload:    marshalPayload(PSIPayload{Feature: feature, BinID: binID, BinCount: binCount}),
	}
}

// NewCustomRecord builds an envelope carrying a single metric observation.
func NewCustomRecord(space, name, version string, createdAt time.Time, metric string, value float64) Record {
	return Record{
		RecordType: RecordCustom,
		CreatedAt:  createdAt,
		Space:      space,
		Name:       name,
		Version:    version,
		DriftType:  string(RecordCustom),
		Payload:    marshalPayload(CustomPayload{Metric: metric, Value: value}),
	}
}

// NewLLMRecord builds an envelope carrying a sampled LLM interaction.
func NewLLMRecord(space, name, version string, createdAt time.Time, context map[string]any, prompt any) Record {
	return Record{
		RecordType: RecordLLM,
		CreatedAt:  createdAt,
		Space:      space,
		Name:       name,
		Version:    version,
		DriftType:  string(RecordLLM),
		Payload:    marshalPayload(LLMPayload{Context: context, Prompt: prompt}),
	}
}

// DecodeSPC unmarshals the payload as SPCPayload.
func (r Record) DecodeSPC() (SPCPayload, error) {
	var p SPCPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return p, apperror.Wrap(err, apperror.CodeMalformedPayload, "invalid spc payload")
	}
	return p, nil
}

// DecodePSI unmarshals the payload as PSIPayload.
func (r Record) DecodePSI() (PSIPayload, error) {
	var p PSIPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return p, apperror.Wrap(err, apperror.CodeMalformedPayload, "invalid psi payload")
	}
	return p, nil
}

// DecodeCustom unmarshals the payload as CustomPayload.
func (r Record) DecodeCustom() (CustomPayload, error) {
	var p CustomPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return p, apperror.Wrap(err, apperror.CodeMalformedPayload, "invalid custom payload")
	}
	return p, nil
}

// DecodeLLM unmarshals the payload as LLMPayload.
func (r Record) DecodeLLM() (LLMPayload, error) {
	var p LLMPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return p, apperror.Wrap(err, apperror.CodeMalformedPayload, "invalid llm payload")
	}
	return p, nil
}

// UniquenessKey derives the dedup key a consumer uses for its
// ON CONFLICT DO NOTHING insert: identical resubmissions (at-least-once
// redelivery) hash to the same key regardless of arrival order.
func (r Record) UniquenessKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d|%s",
		r.RecordType, r.Space, r.Name, r.Version, r.DriftType, r.CreatedAt.UnixNano(), string(r.Payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the envelope has the minimum fields required to resolve
// an entity and route the payload.
func (r Record) Validate() error {
	if r.Space == "" || r.Name == "" || r.Version == "" {
		return apperror.ErrMissingEntity
	}
	switch r.RecordType {
	case RecordSPC, RecordPSI, RecordCustom, RecordLLM, RecordObservability:
	default:
		return apperror.New(apperror.CodeMalformedPayload, "unknown record_type")
	}
	if len(r.Payload) == 0 && r.RecordType != RecordObservability {
		return apperror.New(apperror.CodeMalformedPayload, "record payload is empty")
	}
	return nil
}
