package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Evidence kinds.
const (
	KindDecodeFailure = "decode-failure"
	KindRejection     = "rejection"
)

// Evidence is the archived context of one failure. Raw holds the exact bytes
// involved: the account data that failed to decode or the signed transaction
// that was rejected.
type Evidence struct {
	Kind       string   `json:"kind"`
	Subject    string   `json:"subject"`
	Record     string   `json:"record,omitempty"`
	Reason     string   `json:"reason"`
	Detail     string   `json:"detail,omitempty"`
	Logs       []string `json:"logs,omitempty"`
	Raw        []byte   `json:"raw,omitempty"`
	Attempt    string   `json:"attempt,omitempty"`
	RecordedAt int64    `json:"recorded_at"`
}

func (e Evidence) validate() error {
	switch e.Kind {
	case KindDecodeFailure, KindRejection:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvidence, e.Kind)
	}
	if e.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidEvidence)
	}
	if e.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidEvidence)
	}
	return nil
}

// Archive stores ev as JSON in cas and returns its CID.
func Archive(cas CAS, ev Evidence) (cid.Cid, error) {
	if cas == nil {
		return cid.Undef, fmt.Errorf("storage: nil CAS")
	}
	if err := ev.validate(); err != nil {
		return cid.Undef, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(b)
}

// Load reads and validates an evidence record.
func Load(cas CAS, id cid.Cid) (Evidence, error) {
	b, err := cas.Get(id)
	if err != nil {
		return Evidence{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var ev Evidence
	if err := dec.Decode(&ev); err != nil {
		return Evidence{}, fmt.Errorf("%w: %v", ErrInvalidEvidence, err)
	}
	if err := ev.validate(); err != nil {
		return Evidence{}, err
	}
	return ev, nil
}
