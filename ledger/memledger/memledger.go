// Package memledger is an in-memory ledger for tests and local development.
//
// It accepts real signed wire transactions, checks signatures, freshness and
// fee-payer funding, runs optional program handlers atomically and records the
// outcome by signature. Faults can be queued to reproduce transport failures.
package memledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/ledger"
)

const (
	// DefaultWindow is how many blocks a checkpoint stays valid.
	DefaultWindow = 150
	// DefaultFee is charged per signature.
	DefaultFee = 5000
)

// Fault alters how the next SendSigned call behaves.
type Fault uint8

const (
	// FaultTransport fails delivery; the transaction is not processed.
	FaultTransport Fault = iota + 1
	// FaultLostAck processes the transaction but reports a transport error.
	FaultLostAck
	// FaultBlackhole acknowledges the transaction but never processes it.
	FaultBlackhole
)

func (f Fault) String() string {
	switch f {
	case FaultTransport:
		return "transport"
	case FaultLostAck:
		return "lost-ack"
	case FaultBlackhole:
		return "blackhole"
	default:
		return fmt.Sprintf("fault(%d)", uint8(f))
	}
}

// Invocation is one instruction as seen by a program handler.
type Invocation struct {
	Program  solana.PublicKey
	Accounts []solana.PublicKey
	Data     []byte
	signers  map[solana.PublicKey]bool
}

func (in Invocation) IsSigner(pk solana.PublicKey) bool { return in.signers[pk] }

// Program executes an instruction against st. Returned logs are recorded with
// the transaction. An error aborts the whole transaction.
type Program func(st *State, in Invocation) ([]string, error)

type txRecord struct {
	status ledger.Status
	slot   uint64
	err    string
	logs   []string
}

type Ledger struct {
	mu sync.Mutex

	accounts map[solana.PublicKey]ledger.Account
	programs map[solana.PublicKey]Program

	height      uint64
	window      uint64
	fee         uint64
	autoAdvance uint64
	preflight   bool

	latest solana.Hash
	hashes map[solana.Hash]uint64

	txs    map[solana.Signature]*txRecord
	faults []Fault

	sends     int
	processed int
}

var _ ledger.Ledger = (*Ledger)(nil)

type Option func(*Ledger)

func WithWindow(blocks uint64) Option { return func(l *Ledger) { l.window = blocks } }

func WithFee(lamportsPerSignature uint64) Option {
	return func(l *Ledger) { l.fee = lamportsPerSignature }
}

// WithAutoAdvance moves the block height forward by n on every BlockHeight call.
func WithAutoAdvance(n uint64) Option { return func(l *Ledger) { l.autoAdvance = n } }

// WithPreflight controls whether program failures are rejected at send time
// (true, the default) or land as failed transactions.
func WithPreflight(on bool) Option { return func(l *Ledger) { l.preflight = on } }

func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:  make(map[solana.PublicKey]ledger.Account),
		programs:  make(map[solana.PublicKey]Program),
		window:    DefaultWindow,
		fee:       DefaultFee,
		preflight: true,
		hashes:    make(map[solana.Hash]uint64),
		txs:       make(map[solana.Signature]*txRecord),
		height:    1,
	}
	for _, o := range opts {
		o(l)
	}
	l.rollHashLocked()
	l.programs[solana.MemoProgramID] = memoProgram
	return l
}

func (l *Ledger) rollHashLocked() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], l.height)
	l.latest = solana.Hash(sha256.Sum256(append([]byte("memledger:"), buf[:]...)))
	l.hashes[l.latest] = l.height + l.window
}

// Advance moves the block height forward by n blocks and issues a new checkpoint.
func (l *Ledger) Advance(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += n
	l.rollHashLocked()
}

// SetAccount stores a copy of acc.
func (l *Ledger) SetAccount(acc ledger.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc.Data = append([]byte(nil), acc.Data...)
	l.accounts[acc.Address] = acc
}

func (l *Ledger) DeleteAccount(addr solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, addr)
}

// Fund credits lamports to addr, creating a system-owned account if needed.
func (l *Ledger) Fund(addr solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		acc = ledger.Account{Address: addr, Owner: solana.SystemProgramID}
	}
	acc.Lamports += lamports
	l.accounts[addr] = acc
}

// Register installs a handler for program. Instructions for programs without a
// handler succeed without effect.
func (l *Ledger) Register(program solana.PublicKey, p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[program] = p
}

// InjectFault queues faults consumed by subsequent SendSigned calls, one per call.
func (l *Ledger) InjectFault(faults ...Fault) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = append(l.faults, faults...)
}

// Sends is the number of SendSigned calls observed.
func (l *Ledger) Sends() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sends
}

// Processed is the number of transactions that landed (successfully or not).
func (l *Ledger) Processed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed
}

func transport(op string, err error) error { return &ledger.TransportError{Op: op, Err: err} }

func (l *Ledger) GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport("get account", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ledger.ErrNotFound, addr)
	}
	return cloneAccount(acc), nil
}

func (l *Ledger) GetMultipleAccounts(ctx context.Context, addrs []solana.PublicKey) ([]*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport("get multiple accounts", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ledger.Account, len(addrs))
	for i, a := range addrs {
		if acc, ok := l.accounts[a]; ok {
			out[i] = cloneAccount(acc)
		}
	}
	return out, nil
}

func cloneAccount(acc ledger.Account) *ledger.Account {
	acc.Data = append([]byte(nil), acc.Data...)
	return &acc
}

func (l *Ledger) LatestCheckpoint(ctx context.Context) (ledger.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Checkpoint{}, transport("latest checkpoint", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledger.Checkpoint{Blockhash: l.latest, LastValidBlockHeight: l.hashes[l.latest]}, nil
}

func (l *Ledger) BlockHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, transport("block height", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.autoAdvance > 0 {
		l.height += l.autoAdvance
		l.rollHashLocked()
	}
	return l.height, nil
}

func (l *Ledger) SendSigned(ctx context.Context, raw []byte) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, transport("send", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends++

	var fault Fault
	if len(l.faults) > 0 {
		fault = l.faults[0]
		l.faults = l.faults[1:]
	}
	if fault == FaultTransport {
		return solana.Signature{}, transport("send", fmt.Errorf("injected %s fault", fault))
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ledger.ErrMalformedTx, err)
	}
	if len(tx.Signatures) == 0 || len(tx.Message.AccountKeys) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: unsigned transaction", ledger.ErrMalformedTx)
	}
	sig := tx.Signatures[0]
	if _, seen := l.txs[sig]; seen {
		return solana.Signature{}, fmt.Errorf("%w: %s", ledger.ErrAlreadyProcessed, sig)
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, ledger.Reject("signature verification failed: "+err.Error(), nil)
	}
	if fault == FaultBlackhole {
		return sig, nil
	}

	if err := l.processLocked(tx); err != nil {
		return solana.Signature{}, err
	}
	if fault == FaultLostAck {
		return solana.Signature{}, transport("send", fmt.Errorf("injected %s fault", fault))
	}
	return sig, nil
}

func (l *Ledger) processLocked(tx *solana.Transaction) error {
	lastValid, ok := l.hashes[tx.Message.RecentBlockhash]
	if !ok || l.height > lastValid {
		return ledger.Reject("Blockhash not found", nil)
	}

	payer := tx.Message.AccountKeys[0]
	fee := l.fee * uint64(len(tx.Signatures))
	if acc, ok := l.accounts[payer]; !ok || acc.Lamports < fee {
		return ledger.Reject("Attempt to debit an account but found no record of a prior credit.", nil)
	}

	st := newState(l.accounts, l.height)
	logs, execErr := l.executeLocked(st, tx)
	if execErr != nil && l.preflight {
		return ledger.Reject("Transaction simulation failed: "+execErr.Error(), logs)
	}

	rec := &txRecord{status: ledger.StatusSuccess, slot: l.height, logs: logs}
	if execErr != nil {
		rec.status = ledger.StatusFailed
		rec.err = execErr.Error()
	} else {
		st.commit()
	}
	acc := l.accounts[payer]
	acc.Lamports -= fee
	l.accounts[payer] = acc

	l.txs[tx.Signatures[0]] = rec
	l.processed++
	return nil
}

func (l *Ledger) executeLocked(st *State, tx *solana.Transaction) ([]string, error) {
	keys := tx.Message.AccountKeys
	signers := make(map[solana.PublicKey]bool, tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < int(tx.Message.Header.NumRequiredSignatures) && i < len(keys); i++ {
		signers[keys[i]] = true
	}
	var logs []string
	for n, ci := range tx.Message.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) {
			return logs, fmt.Errorf("instruction %d: program index out of range", n)
		}
		inv := Invocation{Program: keys[ci.ProgramIDIndex], Data: ci.Data, signers: signers}
		for _, idx := range ci.Accounts {
			if int(idx) >= len(keys) {
				return logs, fmt.Errorf("instruction %d: account index out of range", n)
			}
			inv.Accounts = append(inv.Accounts, keys[idx])
		}
		logs = append(logs, fmt.Sprintf("Program %s invoke [1]", inv.Program))
		p, ok := l.programs[inv.Program]
		if !ok {
			logs = append(logs, fmt.Sprintf("Program %s success", inv.Program))
			continue
		}
		out, err := p(st, inv)
		logs = append(logs, out...)
		if err != nil {
			logs = append(logs, fmt.Sprintf("Program %s failed: %v", inv.Program, err))
			return logs, fmt.Errorf("instruction %d: %w", n, err)
		}
		logs = append(logs, fmt.Sprintf("Program %s success", inv.Program))
	}
	return logs, nil
}

func (l *Ledger) SignatureStatus(ctx context.Context, sig solana.Signature) (ledger.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return ledger.SignatureStatus{}, transport("signature status", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.txs[sig]
	if !ok {
		return ledger.SignatureStatus{Status: ledger.StatusUnknown}, nil
	}
	return ledger.SignatureStatus{Status: rec.status, Slot: rec.slot, Err: rec.err}, nil
}

func (l *Ledger) Logs(ctx context.Context, sig solana.Signature) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport("logs", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.txs[sig]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, sig)
	}
	return append([]string(nil), rec.logs...), nil
}

func memoProgram(_ *State, in Invocation) ([]string, error) {
	return []string{fmt.Sprintf("Program log: Memo (len %d): %q", len(in.Data), in.Data)}, nil
}
