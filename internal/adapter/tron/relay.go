package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nusd-wallet/config"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const relayTransferPath = "/v1/transfers"

// Relay headers.
const (
	HeaderTimestamp      = "X-Timestamp"
	HeaderNonce          = "X-Nonce"
	HeaderSignature      = "X-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// relayPayload is the body posted to the signer relay.
type relayPayload struct {
	FromAddress string `json:"from_address"`
	PrivateKey  string `json:"private_key"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"` // decimal NUSD, e.g. "12.5"
	Contract    string `json:"contract"`
	Reference   string `json:"reference"` // Idempotency key, covered by the signature
}

// Relay implements ports.BlockchainRelay by posting signed payout requests
// to the signer relay service.
type Relay struct {
	baseURL string
	secret  string
	sigSvc  ports.SignatureService
	client  HTTPClient
	log     zerolog.Logger
	now     func() time.Time
}

// NewRelay creates a relay client.
func NewRelay(cfg config.RelayConfig, sigSvc ports.SignatureService, client HTTPClient, log zerolog.Logger) *Relay {
	return &Relay{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		secret:  cfg.Secret,
		sigSvc:  sigSvc,
		client:  client,
		log:     log,
		now:     time.Now,
	}
}

// SendAsset dispatches one payout and returns the network transaction id.
// A 4xx answer wraps ports.ErrRelayRejected: the relay refused and nothing
// was broadcast. Any other failure leaves the outcome unknown.
func (r *Relay) SendAsset(ctx context.Context, req ports.PayoutRequest) (string, error) {
	body, err := json.Marshal(relayPayload{
		FromAddress: req.FromAddress,
		PrivateKey:  req.PrivateKey,
		ToAddress:   req.ToAddress,
		Amount:      domain.FormatAmount(req.Amount),
		Contract:    req.Asset,
		Reference:   req.IdempotencyKey,
	})
	if err != nil {
		return "", fmt.Errorf("encode payout: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, r.baseURL+relayTransferPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}

	ts := r.now().Unix()
	nonce := uuid.NewString()
	canonical := r.sigSvc.BuildCanonicalString(http.MethodPost, relayTransferPath, ts, nonce, string(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	httpReq.Header.Set(HeaderNonce, nonce)
	httpReq.Header.Set(HeaderSignature, r.sigSvc.Sign(r.secret, canonical))
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	}

	respBody, err := do(ctx, r.client, httpReq)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
			reason := gjson.Get(se.Body, "error").String()
			if reason == "" {
				reason = se.Body
			}
			return "", fmt.Errorf("%w: status %d: %s", ports.ErrRelayRejected, se.Status, reason)
		}
		return "", fmt.Errorf("relay: %w", err)
	}

	txID := gjson.GetBytes(respBody, "txid").String()
	if txID == "" {
		return "", fmt.Errorf("relay: response has no txid")
	}

	r.log.Info().
		Str("from", req.FromAddress).
		Str("to", req.ToAddress).
		Int64("amount", req.Amount).
		Str("reference", req.IdempotencyKey).
		Str("tx_id", txID).
		Msg("payout broadcast")

	return txID, nil
}
