package grpcledger

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/protobuf/types/known/structpb"

	"noema.dev/ledgerkit/ledger"
)

// Field names of the structpb messages. 64-bit integers travel as decimal
// strings because structpb numbers are doubles.
const (
	fAddress   = "address"
	fOwner     = "owner"
	fLamports  = "lamports"
	fData      = "data"
	fBlockhash = "blockhash"
	fLastValid = "lastValidBlockHeight"
	fStatus    = "status"
	fSlot      = "slot"
	fErr       = "err"
)

func accountToStruct(a *ledger.Account) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fAddress:  structpb.NewStringValue(a.Address.String()),
		fOwner:    structpb.NewStringValue(a.Owner.String()),
		fLamports: structpb.NewStringValue(strconv.FormatUint(a.Lamports, 10)),
		fData:     structpb.NewStringValue(base64.StdEncoding.EncodeToString(a.Data)),
	}}
}

func accountFromStruct(s *structpb.Struct) (*ledger.Account, error) {
	var (
		a   ledger.Account
		err error
	)
	if a.Address, err = pubkeyField(s, fAddress); err != nil {
		return nil, err
	}
	if a.Owner, err = pubkeyField(s, fOwner); err != nil {
		return nil, err
	}
	if a.Lamports, err = uintField(s, fLamports); err != nil {
		return nil, err
	}
	if a.Data, err = base64.StdEncoding.DecodeString(stringField(s, fData)); err != nil {
		return nil, fmt.Errorf("grpcledger: field %s: %w", fData, err)
	}
	return &a, nil
}

func checkpointToStruct(cp ledger.Checkpoint) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fBlockhash: structpb.NewStringValue(cp.Blockhash.String()),
		fLastValid: structpb.NewStringValue(strconv.FormatUint(cp.LastValidBlockHeight, 10)),
	}}
}

func checkpointFromStruct(s *structpb.Struct) (ledger.Checkpoint, error) {
	h, err := solana.HashFromBase58(stringField(s, fBlockhash))
	if err != nil {
		return ledger.Checkpoint{}, fmt.Errorf("grpcledger: field %s: %w", fBlockhash, err)
	}
	lv, err := uintField(s, fLastValid)
	if err != nil {
		return ledger.Checkpoint{}, err
	}
	return ledger.Checkpoint{Blockhash: h, LastValidBlockHeight: lv}, nil
}

func statusToStruct(st ledger.SignatureStatus) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fStatus: structpb.NewStringValue(st.Status.String()),
		fSlot:   structpb.NewStringValue(strconv.FormatUint(st.Slot, 10)),
		fErr:    structpb.NewStringValue(st.Err),
	}}
}

func statusFromStruct(s *structpb.Struct) (ledger.SignatureStatus, error) {
	var st ledger.SignatureStatus
	switch v := stringField(s, fStatus); v {
	case ledger.StatusUnknown.String():
		st.Status = ledger.StatusUnknown
	case ledger.StatusPending.String():
		st.Status = ledger.StatusPending
	case ledger.StatusSuccess.String():
		st.Status = ledger.StatusSuccess
	case ledger.StatusFailed.String():
		st.Status = ledger.StatusFailed
	default:
		return st, fmt.Errorf("grpcledger: unknown status %q", v)
	}
	slot, err := uintField(s, fSlot)
	if err != nil {
		return st, err
	}
	st.Slot = slot
	st.Err = stringField(s, fErr)
	return st, nil
}

func stringsToList(ss []string) *structpb.ListValue {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(ss))}
	for i, s := range ss {
		l.Values[i] = structpb.NewStringValue(s)
	}
	return l
}

func listToStrings(l *structpb.ListValue) []string {
	out := make([]string, len(l.GetValues()))
	for i, v := range l.GetValues() {
		out[i] = v.GetStringValue()
	}
	return out
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func uintField(s *structpb.Struct, name string) (uint64, error) {
	v, err := strconv.ParseUint(stringField(s, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("grpcledger: field %s: %w", name, err)
	}
	return v, nil
}

func pubkeyField(s *structpb.Struct, name string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(stringField(s, name))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("grpcledger: field %s: %w", name, err)
	}
	return pk, nil
}
