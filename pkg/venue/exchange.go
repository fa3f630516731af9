package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/journal"
	"github.com/gregtusar/perptrader/pkg/models"
)

// Journal receives one entry per exchange submission.
type Journal interface {
	Append(entry journal.Entry) error
}

// SignedAction is a fully signed envelope. Posting the same SignedAction twice
// reuses its nonce, so the venue places it at most once.
type SignedAction struct {
	Kind     string
	Count    int
	Envelope Envelope
}

// Exchange builds, signs and submits mutations. It never retries on its own.
type Exchange struct {
	client  *Client
	signer  *Signer
	nonces  *NonceSource
	vault   *common.Address
	journal Journal
	logger  *logrus.Logger
}

type ExchangeOption func(*Exchange)

func WithVault(vault common.Address) ExchangeOption {
	return func(e *Exchange) { e.vault = &vault }
}

func WithJournal(j Journal) ExchangeOption {
	return func(e *Exchange) { e.journal = j }
}

func NewExchange(client *Client, signer *Signer, nonces *NonceSource, logger *logrus.Logger, opts ...ExchangeOption) *Exchange {
	e := &Exchange{
		client: client,
		signer: signer,
		nonces: nonces,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exchange) Address() common.Address { return e.signer.Address() }

func (e *Exchange) vaultAddress() common.Address {
	if e.vault == nil {
		return common.Address{}
	}
	return *e.vault
}

func (e *Exchange) envelope(action interface{}, nonce uint64, connID common.Hash) (Envelope, error) {
	sig, err := e.signer.SignConnectionID(connID)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Action: action, Nonce: nonce, Signature: sig}
	if e.vault != nil {
		env.VaultAddress = e.vault.Hex()
	}
	return env, nil
}

// SignOrders signs batch under nonce without sending it.
func (e *Exchange) SignOrders(batch models.OrderBatch, nonce uint64) (*SignedAction, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty order batch")
	}
	connID, err := OrderConnectionID(batch, e.vaultAddress(), nonce)
	if err != nil {
		return nil, fmt.Errorf("connection id: %w", err)
	}
	env, err := e.envelope(OrderAction{Type: "order", Grouping: groupingWire, Orders: batch}, nonce, connID)
	if err != nil {
		return nil, err
	}
	return &SignedAction{Kind: "order", Count: len(batch), Envelope: env}, nil
}

func (e *Exchange) SignModifies(mods []models.ModifyRequest, nonce uint64) (*SignedAction, error) {
	if len(mods) == 0 {
		return nil, fmt.Errorf("empty modify batch")
	}
	connID, err := ModifyConnectionID(mods, e.vaultAddress(), nonce)
	if err != nil {
		return nil, fmt.Errorf("connection id: %w", err)
	}
	env, err := e.envelope(ModifyAction{Type: "batchModify", Modifies: mods}, nonce, connID)
	if err != nil {
		return nil, err
	}
	return &SignedAction{Kind: "batchModify", Count: len(mods), Envelope: env}, nil
}

func (e *Exchange) SignCancels(cancels []models.CancelRequest, nonce uint64) (*SignedAction, error) {
	if len(cancels) == 0 {
		return nil, fmt.Errorf("empty cancel batch")
	}
	connID, err := CancelConnectionID(cancels, e.vaultAddress(), nonce)
	if err != nil {
		return nil, fmt.Errorf("connection id: %w", err)
	}
	env, err := e.envelope(CancelAction{Type: "cancel", Cancels: cancels}, nonce, connID)
	if err != nil {
		return nil, err
	}
	return &SignedAction{Kind: "cancel", Count: len(cancels), Envelope: env}, nil
}

func (e *Exchange) PlaceOrders(ctx context.Context, batch models.OrderBatch) ([]models.OrderStatus, error) {
	nonce, err := e.nonces.Next()
	if err != nil {
		return nil, err
	}
	signed, err := e.SignOrders(batch, nonce)
	if err != nil {
		return nil, err
	}
	return e.Post(ctx, signed)
}

func (e *Exchange) ModifyOrders(ctx context.Context, mods []models.ModifyRequest) ([]models.OrderStatus, error) {
	nonce, err := e.nonces.Next()
	if err != nil {
		return nil, err
	}
	signed, err := e.SignModifies(mods, nonce)
	if err != nil {
		return nil, err
	}
	return e.Post(ctx, signed)
}

func (e *Exchange) CancelOrders(ctx context.Context, cancels []models.CancelRequest) ([]models.OrderStatus, error) {
	nonce, err := e.nonces.Next()
	if err != nil {
		return nil, err
	}
	signed, err := e.SignCancels(cancels, nonce)
	if err != nil {
		return nil, err
	}
	return e.Post(ctx, signed)
}

// UpdateLeverage sets leverage and margin mode for one asset.
func (e *Exchange) UpdateLeverage(ctx context.Context, asset uint32, leverage uint32, cross bool) error {
	if leverage == 0 {
		return fmt.Errorf("leverage must be positive")
	}
	nonce, err := e.nonces.Next()
	if err != nil {
		return err
	}
	connID, err := LeverageConnectionID(asset, cross, leverage, e.vaultAddress(), nonce)
	if err != nil {
		return fmt.Errorf("connection id: %w", err)
	}
	action := LeverageAction{Type: "updateLeverage", Asset: asset, IsCross: cross, Leverage: leverage}
	env, err := e.envelope(action, nonce, connID)
	if err != nil {
		return err
	}
	_, err = e.Post(ctx, &SignedAction{Kind: "updateLeverage", Envelope: env})
	return err
}

type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type exchangeBody struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []models.OrderStatus `json:"statuses"`
	} `json:"data"`
}

// Post sends a signed action and returns one status per submitted item, in
// submission order.
func (e *Exchange) Post(ctx context.Context, signed *SignedAction) ([]models.OrderStatus, error) {
	log := e.logger.WithFields(logrus.Fields{
		"action": signed.Kind,
		"nonce":  signed.Envelope.Nonce,
		"count":  signed.Count,
	})

	var resp exchangeResponse
	if err := e.client.Exchange(ctx, signed.Envelope, &resp); err != nil {
		e.record(signed, nil, err)
		return nil, err
	}

	statuses, err := parseExchangeResponse(resp, signed.Count)
	e.record(signed, statuses, err)
	if err != nil {
		log.WithError(err).Warn("exchange rejected action")
		return nil, err
	}
	log.Debug("exchange accepted action")
	return statuses, nil
}

func parseExchangeResponse(resp exchangeResponse, want int) ([]models.OrderStatus, error) {
	switch resp.Status {
	case "err":
		var msg string
		if err := json.Unmarshal(resp.Response, &msg); err != nil {
			msg = string(resp.Response)
		}
		return nil, &VenueError{Msg: msg}
	case "ok":
	default:
		return nil, fmt.Errorf("%w: unknown response status %q", ErrMalformedJSON, resp.Status)
	}

	if want == 0 {
		return nil, nil
	}
	var body exchangeBody
	if err := json.Unmarshal(resp.Response, &body); err != nil {
		return nil, fmt.Errorf("%w: response body: %v", ErrMalformedJSON, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("%w: response without data", ErrMalformedJSON)
	}
	if len(body.Data.Statuses) != want {
		return nil, fmt.Errorf("%w: got %d statuses for %d orders", ErrMalformedJSON, len(body.Data.Statuses), want)
	}
	return body.Data.Statuses, nil
}

func (e *Exchange) record(signed *SignedAction, statuses []models.OrderStatus, err error) {
	if e.journal == nil {
		return
	}
	entry := journal.Entry{
		Nonce:    signed.Envelope.Nonce,
		Action:   signed.Kind,
		Count:    signed.Count,
		Statuses: statuses,
		Time:     time.Now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := e.journal.Append(entry); jerr != nil {
		e.logger.WithError(jerr).Warn("failed to journal submission")
	}
}
