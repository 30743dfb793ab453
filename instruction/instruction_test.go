package instruction

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/selector"
)

var (
	program = solana.MustPublicKeyFromBase58("G8iYmvncvWsfHRrxZvKuPU6B2kcMj82Lpcf6og6SyMkW")
	owner   = solana.MustPublicKeyFromBase58("3oxg7wVtdp9T3sx773SMmws8zrGyAJecqTruaXfiw3mN")
	record  = solana.MustPublicKeyFromBase58("B5HRoKaJVqGfMJg956vu4Auod7bigDnZS5fETszMuj38")
)

var registerArgs = codec.Schema{
	Name: "register_agent",
	Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("metadata_uri", codec.String),
	},
}

func TestBuildPayload(t *testing.T) {
	in, err := Build(program,
		[]Role{Writable(record), Payer(owner), Readonly(solana.SystemProgramID)},
		"register_agent", registerArgs, []any{"a", ""})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := in.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	want := []byte{0x87, 0x9d, 0x42, 0xc3, 0x02, 0x71, 0xaf, 0x1e, 1, 0, 0, 0, 'a', 0, 0, 0, 0}
	if !bytes.Equal(data, want) {
		t.Fatalf("payload: got %x want %x", data, want)
	}
	sel, ok := in.Selector()
	if !ok || sel != selector.Instruction("register_agent") {
		t.Fatalf("Selector: got %s/%v", sel, ok)
	}
	if in.ProgramID() != program || in.Method() != "register_agent" {
		t.Fatalf("unexpected program %s or method %q", in.ProgramID(), in.Method())
	}
	payer, ok := in.FeePayer()
	if !ok || payer != owner {
		t.Fatalf("FeePayer: got %s/%v", payer, ok)
	}
}

func TestAccountsPreserveOrderAndFlags(t *testing.T) {
	roles := []Role{Writable(record), Payer(owner), Readonly(solana.SystemProgramID)}
	in, err := Build(program, roles, "register_agent", registerArgs, []any{"a", "b"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	metas := in.Accounts()
	if len(metas) != len(roles) {
		t.Fatalf("got %d accounts want %d", len(metas), len(roles))
	}
	for i, m := range metas {
		r := roles[i]
		if m.PublicKey != r.Address || m.IsSigner != r.Signer || m.IsWritable != r.Writable {
			t.Fatalf("account %d: got %+v want %+v", i, m, r)
		}
	}
}

func TestBuildRejectsInvalidRoles(t *testing.T) {
	cases := map[string][]Role{
		"empty":          nil,
		"two payers":     {Payer(owner), Payer(record)},
		"unsigned payer": {{Address: owner, Writable: true, FeePayer: true}},
	}
	for name, roles := range cases {
		_, err := Build(program, roles, "register_agent", registerArgs, []any{"a", "b"})
		if !errors.Is(err, ErrInvalidRoles) {
			t.Fatalf("%s: expected ErrInvalidRoles, got %v", name, err)
		}
	}
}

func TestBuildPropagatesEncodeErrors(t *testing.T) {
	_, err := Build(program, []Role{Payer(owner)}, "register_agent", registerArgs, []any{"a", uint32(7)})
	if !codec.IsKind(err, codec.KindInvalidValue) {
		t.Fatalf("expected InvalidValue, got %v", err)
	}
}

func TestInstructionIsImmutable(t *testing.T) {
	roles := []Role{Payer(owner)}
	in, err := Build(program, roles, "register_agent", registerArgs, []any{"a", "b"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	roles[0].Address = record
	data, _ := in.Data()
	data[0] ^= 0xff
	if in.Roles()[0].Address != owner {
		t.Fatalf("roles aliased caller slice")
	}
	again, _ := in.Data()
	if again[0] != 0x87 {
		t.Fatalf("payload aliased returned slice")
	}
}

func TestRaw(t *testing.T) {
	in, err := Raw(solana.MemoProgramID, []Role{Signer(owner)}, []byte("hello"))
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	data, _ := in.Data()
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
	if _, ok := in.Selector(); ok {
		t.Fatalf("raw instruction should not report a selector")
	}
}
