package decoder

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
)

// route is one entry of the dispatch table: a program-ID gate and the
// decoder behind it.
type route struct {
	name     string
	programs []solana.PublicKey
	decode   func(*instruction) *Summary
}

func (r route) matches(programID solana.PublicKey) bool {
	for _, p := range r.programs {
		if p.Equals(programID) {
			return true
		}
	}
	return false
}

// Decoder turns compiled instructions into summaries. It is immutable after
// New and safe for concurrent use.
type Decoder struct {
	routes  []route
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type options struct {
	programs ProgramIDs
	schemas  map[solana.PublicKey]*IDL
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Decoder.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPrograms overrides the deployment-specific program addresses.
// Zero addresses keep their defaults.
func WithPrograms(ids ProgramIDs) Option {
	return func(o *options) {
		if !ids.BatchToken.IsZero() {
			o.programs.BatchToken = ids.BatchToken
		}
		if !ids.DCA.IsZero() {
			o.programs.DCA = ids.DCA
		}
		if !ids.Governance.IsZero() {
			o.programs.Governance = ids.Governance
		}
	}
}

// WithSchema attaches an interface schema to a program. Only the DCA and
// governance programs use schemas.
func WithSchema(programID solana.PublicKey, idl *IDL) Option {
	return func(o *options) {
		if idl != nil {
			o.schemas[programID] = idl
		}
	}
}

// New builds a Decoder. Dispatch precedence is fixed: Memo, System, Stake,
// Token, batch token, DCA, governance.
func New(opts ...Option) *Decoder {
	o := &options{
		programs: DefaultProgramIDs(),
		schemas:  make(map[solana.PublicKey]*IDL),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dcaSchema := o.schemas[o.programs.DCA]
	govSchema := o.schemas[o.programs.Governance]

	return &Decoder{
		routes: []route{
			{name: "memo", programs: []solana.PublicKey{MemoProgramID, MemoLegacyProgramID}, decode: decodeMemo},
			{name: "system", programs: []solana.PublicKey{SystemProgramID}, decode: decodeSystem},
			{name: "stake", programs: []solana.PublicKey{StakeProgramID}, decode: decodeStake},
			{name: "token", programs: []solana.PublicKey{TokenProgramID, Token2022ProgramID}, decode: decodeToken},
			{name: "batch", programs: []solana.PublicKey{o.programs.BatchToken}, decode: decodeBatchToken},
			{name: "dca", programs: []solana.PublicKey{o.programs.DCA}, decode: func(ix *instruction) *Summary {
				return decodeDCA(ix, dcaSchema)
			}},
			{name: "governance", programs: []solana.PublicKey{o.programs.Governance}, decode: func(ix *instruction) *Summary {
				return decodeGovernance(ix, govSchema)
			}},
		},
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// DecodeAll decodes every instruction against keys. It returns exactly one
// summary per instruction, in input order, plus every referenced account
// address. The only error is an account or program index outside keys;
// no partial result is returned in that case.
func (d *Decoder) DecodeAll(instructions []solana.CompiledInstruction, keys AccountKeys, snap Snapshot) (*Result, error) {
	start := time.Now()
	result := &Result{
		Summaries:  make([]*Summary, 0, len(instructions)),
		Candidates: NewCandidateSet(),
	}

	for pos, ci := range instructions {
		accounts := make([]solana.PublicKey, len(ci.Accounts))
		for i, idx := range ci.Accounts {
			addr, err := keys.At(idx)
			if err != nil {
				d.recordDuration("error", start)
				return nil, fmt.Errorf("instruction %d account %d: %w", pos, i, err)
			}
			accounts[i] = addr
			result.Candidates.Add(addr)
		}

		programID, err := keys.At(ci.ProgramIDIndex)
		if err != nil {
			d.recordDuration("error", start)
			return nil, fmt.Errorf("instruction %d program: %w", pos, err)
		}

		ix := &instruction{
			programID: programID,
			accounts:  accounts,
			data:      []byte(ci.Data),
			snap:      snap,
		}
		result.Summaries = append(result.Summaries, d.decodeOne(pos, ix))
	}

	d.recordDuration("success", start)
	return result, nil
}

// DecodeTransaction resolves the transaction's keys from meta and decodes
// its instructions.
func (d *Decoder) DecodeTransaction(tx *solana.Transaction, meta *rpc.TransactionMeta, snap Snapshot) (*Result, error) {
	keys := ResolveMessageKeys(&tx.Message, meta)
	return d.DecodeAll(tx.Message.Instructions, keys, snap)
}

func (d *Decoder) decodeOne(pos int, ix *instruction) *Summary {
	var s *Summary
	for _, r := range d.routes {
		if !r.matches(ix.programID) {
			continue
		}
		if s = d.try(r, ix); s != nil {
			break
		}
	}

	if s == nil {
		s = &Summary{
			Program:     ix.programID.String(),
			Kind:        KindUnknownProgram,
			Description: PrintableText(ix.data),
		}
		d.logger.Debug("no decoder matched instruction",
			"position", pos,
			"program", ix.programID.String(),
			"payload_len", len(ix.data),
		)
		if d.metrics != nil {
			d.metrics.RecordFallback(ix.programID.String())
		}
	} else if d.metrics != nil {
		d.metrics.RecordInstructionDecoded(s.Program, s.Kind)
	}

	s.Index = pos
	s.ProgramID = ix.programID.String()
	s.RawPayload = append([]byte{}, ix.data...)
	s.Accounts = make([]string, len(ix.accounts))
	for i, a := range ix.accounts {
		s.Accounts[i] = a.String()
	}
	return s
}

// try runs one decoder, treating a panic as a decline.
func (d *Decoder) try(r route, ix *instruction) (s *Summary) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Debug("recovered decoder panic",
				"decoder", r.name,
				"program", ix.programID.String(),
				"panic", fmt.Sprint(rec),
			)
			if d.metrics != nil {
				d.metrics.RecordRecoveredPanic(r.name)
			}
			s = nil
		}
	}()
	return r.decode(ix)
}

func (d *Decoder) recordDuration(status string, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordDecodeDuration(status, time.Since(start).Seconds())
	}
}
