package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shellgame-backend/internal/models"
)

// ErrTxNotFound is returned by TransactionInfo while the indexer has not yet
// seen the transaction's result.
var ErrTxNotFound = errors.New("transaction not found")

// LedgerNode is the client-side view of the ledger's RPC surface. The ledger
// client only ever sees this interface so tests can substitute a double with
// short, deterministic timings.
type LedgerNode interface {
	SuggestedParams(ctx context.Context) (*models.SuggestedParams, error)
	SubmitTransaction(ctx context.Context, raw []byte) (string, error)
	PendingInfo(ctx context.Context, txID string) (*models.PendingTxInfo, error)
	TransactionInfo(ctx context.Context, txID string) (*models.RoundResult, error)
	AccountBalance(ctx context.Context, address string) (uint64, error)
}

// HTTPNode speaks the node's standard HTTP RPC interface.
type HTTPNode struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNode(baseURL string) *HTTPNode {
	return &HTTPNode{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *HTTPNode) SuggestedParams(ctx context.Context) (*models.SuggestedParams, error) {
	var params models.SuggestedParams
	if err := n.getJSON(ctx, "/v2/transactions/params", &params); err != nil {
		return nil, fmt.Errorf("fetch suggested params: %w", err)
	}
	return &params, nil
}

func (n *HTTPNode) SubmitTransaction(ctx context.Context, raw []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v2/transactions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-binary")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var nodeErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&nodeErr)
		return "", fmt.Errorf("node rejected transaction (%d): %s", resp.StatusCode, nodeErr.Message)
	}

	var body struct {
		TxID string `json:"txId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed submit response: %w", err)
	}
	return body.TxID, nil
}

func (n *HTTPNode) PendingInfo(ctx context.Context, txID string) (*models.PendingTxInfo, error) {
	var info models.PendingTxInfo
	if err := n.getJSON(ctx, "/v2/transactions/pending/"+txID, &info); err != nil {
		return nil, fmt.Errorf("fetch pending info: %w", err)
	}
	return &info, nil
}

func (n *HTTPNode) TransactionInfo(ctx context.Context, txID string) (*models.RoundResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/v2/transactions/"+txID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node returned %d for transaction info", resp.StatusCode)
	}

	var body struct {
		VerificationHash string `json:"verification-hash"`
		ConfirmedRound   uint64 `json:"confirmed-round"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed transaction info: %w", err)
	}
	if body.VerificationHash == "" {
		// confirmed but the contract has not emitted its result record yet
		return nil, ErrTxNotFound
	}
	return &models.RoundResult{
		TxID:             txID,
		VerificationHash: body.VerificationHash,
		ConfirmedRound:   body.ConfirmedRound,
	}, nil
}

func (n *HTTPNode) AccountBalance(ctx context.Context, address string) (uint64, error) {
	var body struct {
		Amount uint64 `json:"amount"`
	}
	if err := n.getJSON(ctx, "/v2/accounts/"+address, &body); err != nil {
		return 0, fmt.Errorf("fetch account balance: %w", err)
	}
	return body.Amount, nil
}

func (n *HTTPNode) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
