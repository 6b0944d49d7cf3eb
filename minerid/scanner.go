package minerid

import (
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"go.uber.org/zap"
)

// Scanner searches coinbase transactions for miner ids. It holds no
// per-scan state and is safe for concurrent use.
type Scanner struct {
	verifier Verifier
	log      *zap.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithVerifier replaces the secp256k1 verifier
func WithVerifier(v Verifier) Option {
	return func(s *Scanner) { s.verifier = v }
}

// WithLogger sets the logger used for rejected candidates
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// NewScanner returns a Scanner using ECDSAVerifier and a no-op logger
// unless overridden
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{verifier: ECDSAVerifier{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidate is the outcome of evaluating one miner id output
type Candidate struct {
	Vout    uint32
	MinerID *MinerID
	Err     error
}

// Find returns the miner id of the first output, in index order, whose
// documents and signatures all verify at blockHeight.
func (s *Scanner) Find(tx *transaction.Transaction, blockHeight int32) (*MinerID, bool) {
	return s.FindInOutputs(*tx.TxID(), tx.Outputs, blockHeight)
}

// FindInOutputs is Find for callers that hold the txid and outputs only
func (s *Scanner) FindInOutputs(txID chainhash.Hash, outputs []*transaction.TransactionOutput, blockHeight int32) (*MinerID, bool) {
	for i, out := range outputs {
		m, err := s.evaluate(txID, uint32(i), lockingScriptBytes(out), blockHeight)
		if err != nil {
			s.logRejection(err)
			continue
		}
		if m != nil {
			s.log.Info("found miner id",
				zap.String("txid", txID.String()),
				zap.Int("vout", i),
				zap.String("minerId", m.document.MinerID()),
				zap.Bool("dynamic", m.HasDynamic()),
			)
			return m, true
		}
	}
	return nil, false
}

// Candidates evaluates every miner id output of tx without stopping at the
// first acceptance. Outputs without the protocol marker are omitted.
func (s *Scanner) Candidates(tx *transaction.Transaction, blockHeight int32) []Candidate {
	txID := *tx.TxID()
	var out []Candidate
	for i, o := range tx.Outputs {
		m, err := s.evaluate(txID, uint32(i), lockingScriptBytes(o), blockHeight)
		if m == nil && err == nil {
			continue
		}
		out = append(out, Candidate{Vout: uint32(i), MinerID: m, Err: err})
	}
	return out
}

// evaluate runs one output through locate, static and dynamic stages.
// (nil, nil) means the output has no protocol marker. A MinerID is only
// returned when every present stage passed.
func (s *Scanner) evaluate(txID chainhash.Hash, vout uint32, lockingScript []byte, blockHeight int32) (m *MinerID, err error) {
	if !IsMinerIDScript(lockingScript) {
		return nil, nil
	}
	defer func() {
		if c, ok := IsCandidateError(err); ok {
			c.TxID = txID
			c.Vout = vout
		}
	}()

	sc := newElementScanner(lockingScript)
	staticText, staticSig, err := extractPair(sc, "static")
	if err != nil {
		return nil, err
	}

	sf, err := validateStatic(staticText, blockHeight)
	if err != nil {
		return nil, err
	}
	if err = verifyStaticSignatures(s.verifier, staticText, staticSig, sf); err != nil {
		return nil, err
	}

	m = &MinerID{}
	m.setStatic(staticText, staticSig, sf)
	if sc.done() {
		return m, nil
	}

	// a dynamic segment follows: from here any failure rejects the whole output
	dynamicText, dynamicSig, err := extractPair(sc, "dynamic")
	if err != nil {
		return nil, err
	}
	df, err := validateDynamic(dynamicText, blockHeight)
	if err != nil {
		return nil, err
	}
	if err = verifyDynamicSignature(s.verifier, m, dynamicText, dynamicSig, df); err != nil {
		return nil, err
	}
	if err = m.setDynamic(dynamicText, df); err != nil {
		return nil, err
	}
	return m, nil
}

// extractPair reads a document and its signature
func extractPair(sc *elementScanner, segment string) ([]byte, []byte, error) {
	text, err := sc.next()
	if err != nil {
		return nil, nil, newCandidateError(KindExtraction, "failed to extract data for "+segment+" document: "+err.Error())
	}
	if len(text) == 0 {
		return nil, nil, newCandidateError(KindExtraction, "empty "+segment+" document")
	}
	sig, err := sc.next()
	if err != nil {
		return nil, nil, newCandidateError(KindExtraction, "failed to extract signature of "+segment+" document: "+err.Error())
	}
	if len(sig) == 0 {
		return nil, nil, newCandidateError(KindExtraction, "empty "+segment+" document signature")
	}
	return text, sig, nil
}

func (s *Scanner) logRejection(err error) {
	c, ok := IsCandidateError(err)
	if !ok {
		s.log.Debug("miner id candidate rejected", zap.Error(err))
		return
	}
	s.log.Debug("miner id candidate rejected",
		zap.String("txid", c.TxID.String()),
		zap.Uint32("vout", c.Vout),
		zap.Stringer("kind", c.Kind),
		zap.String("reason", c.Reason),
	)
}

func lockingScriptBytes(out *transaction.TransactionOutput) []byte {
	if out == nil || out.LockingScript == nil {
		return nil
	}
	return *out.LockingScript
}
