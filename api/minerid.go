// Package api serves miner id extraction and identity history over HTTP
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/julienschmidt/httprouter"
	apirouter "github.com/mrz1836/go-api-router"
	"github.com/tonicpow/go-minerid/chain"
	"github.com/tonicpow/go-minerid/identity"
	"github.com/tonicpow/go-minerid/minerid"
)

// CoinbaseSource fetches the coinbase of a block
type CoinbaseSource interface {
	Coinbase(ctx context.Context, height int32) (*transaction.Transaction, error)
}

// Service holds what the handlers need. Registry is read only here; the
// crawler is the only writer. A nil Registry serves empty identity results.
type Service struct {
	Scanner  *minerid.Scanner
	Source   CoinbaseSource
	Registry *identity.Registry
}

// Result is the response of the extraction endpoints
type Result struct {
	TxID       string              `json:"txid"`
	Height     int32               `json:"height"`
	MinerID    *minerid.MinerID    `json:"minerId,omitempty"`
	Candidates []candidateResponse `json:"candidates,omitempty"`
}

type candidateResponse struct {
	Vout     uint32 `json:"vout"`
	Accepted bool   `json:"accepted"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Service) extract(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {

	// Parse the params
	params := apirouter.GetParams(req)
	rawTx := params.GetString("tx")
	height, err := parseHeight(params.GetString("height"))
	if err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, err.Error())
		return
	}
	if rawTx == "" {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, "missing tx")
		return
	}

	var tx *transaction.Transaction
	if tx, err = transaction.NewTransactionFromHex(rawTx); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, err.Error())
		return
	}

	s.respond(w, req, tx, height, params.GetBool("candidates"))
}

func (s *Service) byHeight(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {

	// Parse the params
	params := apirouter.GetParams(req)
	height, err := parseHeight(params.GetString("height"))
	if err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 30*time.Second)
	defer cancel()

	var tx *transaction.Transaction
	if tx, err = s.Source.Coinbase(ctx, height); err != nil {
		code := http.StatusExpectationFailed
		if errors.Is(err, chain.ErrNotFound) {
			code = http.StatusNotFound
		}
		apirouter.ReturnResponse(w, req, code, err.Error())
		return
	}

	s.respond(w, req, tx, height, params.GetBool("candidates"))
}

func (s *Service) respond(w http.ResponseWriter, req *http.Request, tx *transaction.Transaction, height int32, candidates bool) {
	result := &Result{TxID: tx.TxID().String(), Height: height}
	if candidates {
		for _, c := range s.Scanner.Candidates(tx, height) {
			cr := candidateResponse{Vout: c.Vout, Accepted: c.MinerID != nil}
			if ce, ok := minerid.IsCandidateError(c.Err); ok {
				cr.Kind = ce.Kind.String()
				cr.Reason = ce.Reason
			}
			result.Candidates = append(result.Candidates, cr)
		}
	}

	m, ok := s.Scanner.Find(tx, height)
	if !ok {
		apirouter.ReturnResponse(w, req, http.StatusNotFound, result)
		return
	}
	result.MinerID = m
	apirouter.ReturnResponse(w, req, http.StatusOK, result)
}

func (s *Service) identity(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	minerID := apirouter.GetParams(req).GetString("minerId")
	if s.Registry == nil {
		apirouter.ReturnResponse(w, req, http.StatusNotFound, "unknown miner id")
		return
	}

	state, ok := s.Registry.Lookup(minerID)
	if !ok {
		apirouter.ReturnResponse(w, req, http.StatusNotFound, "unknown miner id")
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, state)
}

func (s *Service) identities(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.Registry == nil {
		apirouter.ReturnResponse(w, req, http.StatusOK, []identity.Identity{})
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, s.Registry.All())
}

func parseHeight(v string) (int32, error) {
	if v == "" {
		return 0, errors.New("missing height")
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return 0, errors.New("invalid height " + strconv.Quote(v))
	}
	return int32(n), nil
}
