package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nusd-wallet/config"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	apiKeyHeader = "TRON-PRO-API-KEY"

	incomingPageSize = 50
	maxIncomingPages = 10
)

// Explorer implements ports.BlockchainExplorer against the TronGrid HTTP API.
// Calls are throttled to the configured request rate.
type Explorer struct {
	baseURL      string
	apiKey       string
	usdtContract string
	client       HTTPClient
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// NewExplorer creates a TronGrid client.
func NewExplorer(cfg config.TronConfig, client HTTPClient, log zerolog.Logger) *Explorer {
	rps := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		rps = rate.Inf
	}
	return &Explorer{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		apiKey:       cfg.APIKey,
		usdtContract: cfg.USDTContract,
		client:       client,
		limiter:      rate.NewLimiter(rps, 1),
		log:          log,
	}
}

// GetTransaction looks txID up and decodes it into a transfer. Unknown
// references yield (nil, nil). A transaction is confirmed once it is in a
// block and executed successfully.
func (e *Explorer) GetTransaction(ctx context.Context, txID string) (*domain.ChainTransaction, error) {
	raw, err := e.post(ctx, "/wallet/gettransactionbyid", map[string]any{"value": txID})
	if err != nil {
		return nil, err
	}
	txJSON := gjson.ParseBytes(raw)
	if !txJSON.Get("txID").Exists() {
		return nil, nil
	}

	ctr := txJSON.Get("raw_data.contract.0")
	value := ctr.Get("parameter.value")

	tx := &domain.ChainTransaction{
		TxID:      txJSON.Get("txID").String(),
		Timestamp: time.UnixMilli(txJSON.Get("raw_data.timestamp").Int()).UTC(),
	}

	from, err := domain.TronAddressFromHex(value.Get("owner_address").String())
	if err != nil {
		return nil, fmt.Errorf("decode owner address: %w", err)
	}
	tx.From = from

	switch ctr.Get("type").String() {
	case "TransferContract":
		to, err := domain.TronAddressFromHex(value.Get("to_address").String())
		if err != nil {
			return nil, fmt.Errorf("decode to address: %w", err)
		}
		tx.To = to
		tx.Amount = value.Get("amount").Int()
		tx.Asset = domain.NativeAsset

	case "TriggerSmartContract":
		to, amount, err := DecodeTransferCall(value.Get("data").String())
		if err != nil {
			if errors.Is(err, errNotTransferCall) {
				return nil, fmt.Errorf("%w: %v", ports.ErrUnsupportedTransaction, err)
			}
			return nil, err
		}
		contract, err := domain.TronAddressFromHex(value.Get("contract_address").String())
		if err != nil {
			return nil, fmt.Errorf("decode contract address: %w", err)
		}
		tx.To = to
		tx.Amount = amount
		tx.Asset = contract

	default:
		return nil, fmt.Errorf("%w: %s", ports.ErrUnsupportedTransaction, ctr.Get("type").String())
	}

	info, err := e.post(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": txID})
	if err != nil {
		return nil, err
	}
	infoJSON := gjson.ParseBytes(info)
	if block := infoJSON.Get("blockNumber"); block.Exists() {
		tx.BlockHeight = block.Int()
		tx.Confirmed = executedOK(txJSON, infoJSON)
		if ts := infoJSON.Get("blockTimeStamp"); ts.Exists() {
			tx.Timestamp = time.UnixMilli(ts.Int()).UTC()
		}
	}

	return tx, nil
}

// executedOK checks the contract result, and for smart contract calls the
// receipt too: a reverted TRC20 transfer is in a block but moved nothing.
func executedOK(txJSON, infoJSON gjson.Result) bool {
	if ret := txJSON.Get("ret.0.contractRet"); ret.Exists() && ret.String() != "SUCCESS" {
		return false
	}
	if res := infoJSON.Get("receipt.result"); res.Exists() && res.String() != "SUCCESS" {
		return false
	}
	return infoJSON.Get("result").String() != "FAILED"
}

// ListIncoming lists confirmed TRC20 transfers into address since the given
// time, following TronGrid's fingerprint pagination.
func (e *Explorer) ListIncoming(ctx context.Context, address string, since time.Time) ([]domain.ChainTransaction, error) {
	q := url.Values{}
	q.Set("only_to", "true")
	q.Set("only_confirmed", "true")
	q.Set("limit", strconv.Itoa(incomingPageSize))
	q.Set("min_timestamp", strconv.FormatInt(since.UnixMilli(), 10))
	if e.usdtContract != "" {
		q.Set("contract_address", e.usdtContract)
	}
	path := "/v1/accounts/" + url.PathEscape(address) + "/transactions/trc20"

	var out []domain.ChainTransaction
	for page := 0; page < maxIncomingPages; page++ {
		raw, err := e.get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		doc := gjson.ParseBytes(raw)
		if s := doc.Get("success"); s.Exists() && !s.Bool() {
			return nil, fmt.Errorf("trongrid: %s", doc.Get("error").String())
		}

		doc.Get("data").ForEach(func(_, item gjson.Result) bool {
			if item.Get("to").String() != address {
				return true
			}
			if t := item.Get("type").String(); t != "" && t != "Transfer" {
				return true
			}
			amount, err := strconv.ParseInt(item.Get("value").String(), 10, 64)
			if err != nil {
				e.log.Warn().Str("tx_id", item.Get("transaction_id").String()).Msg("skipping transfer with unparseable value")
				return true
			}
			out = append(out, domain.ChainTransaction{
				TxID:      item.Get("transaction_id").String(),
				From:      item.Get("from").String(),
				To:        address,
				Amount:    amount,
				Asset:     item.Get("token_info.address").String(),
				Confirmed: true,
				Timestamp: time.UnixMilli(item.Get("block_timestamp").Int()).UTC(),
			})
			return true
		})

		fingerprint := doc.Get("meta.fingerprint").String()
		if fingerprint == "" {
			break
		}
		q.Set("fingerprint", fingerprint)
	}
	return out, nil
}

// Ping implements ports.HealthChecker.
func (e *Explorer) Ping(ctx context.Context) error {
	_, err := e.post(ctx, "/wallet/getnowblock", map[string]any{})
	return err
}

// Name implements ports.HealthChecker.
func (e *Explorer) Name() string {
	return "trongrid"
}

func (e *Explorer) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.send(ctx, req)
}

func (e *Explorer) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, e.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return e.send(ctx, req)
}

func (e *Explorer) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("trongrid throttle: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set(apiKeyHeader, e.apiKey)
	}

	body, err := do(ctx, e.client, req)
	if err != nil {
		e.log.Warn().Err(err).Str("path", req.URL.Path).Msg("trongrid request failed")
		return nil, fmt.Errorf("trongrid %s: %w", req.URL.Path, err)
	}
	return body, nil
}
