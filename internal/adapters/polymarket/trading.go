package polymarket

// trading.go — Real order execution via the Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth.
// All quotes are placed as GTC (good-till-cancelled) limit orders.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/polymaker/internal/domain"
)

const usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

var balanceOfABI abi.ABI

func init() {
	var err error
	balanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("balanceOf abi: " + err.Error())
	}
}

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth      *AuthClient
	rpcClient *ethclient.Client
}

// NewTradingClient creates a TradingClient. rpcURL is used for on-chain
// balance checks.
func NewTradingClient(auth *AuthClient, rpcURL string) (*TradingClient, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("trading: dial rpc: %w", err)
	}
	return &TradingClient{auth: auth, rpcClient: rpc}, nil
}

// CreateOrder signs and submits a GTC limit order to the CLOB. Returns the
// exchange order ID, or "" when the CLOB matched the order immediately and
// responded without one.
func (tc *TradingClient) CreateOrder(ctx context.Context, tokenID string, side domain.Side, price, size float64, negRisk bool) (string, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return "", fmt.Errorf("create order: creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(tokenID, side, price, size, negRisk)
	if err != nil {
		return "", fmt.Errorf("create order: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       tokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return "", fmt.Errorf("create order: post: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return "", fmt.Errorf("create order: clob error: %s", resp.ErrorMsg)
	}
	return resp.OrderID, nil
}

// CancelOrder cancels one order by its CLOB order ID. An order that
// already filled or was already cancelled counts as success.
func (tc *TradingClient) CancelOrder(ctx context.Context, exchangeID string) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel order: creds: %w", err)
	}

	err := tc.auth.doL2(ctx, http.MethodDelete, "/order/"+exchangeID, nil, nil)
	if err != nil && !orderAlreadyGone(err) {
		return fmt.Errorf("cancel order %s: %w", exchangeID, err)
	}
	return nil
}

// CancelTokenOrders cancels every open order for one token.
func (tc *TradingClient) CancelTokenOrders(ctx context.Context, tokenID string) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel token orders: creds: %w", err)
	}

	body := clobCancelBody{AssetID: tokenID}
	if err := tc.auth.doL2(ctx, http.MethodDelete, "/cancel-market-orders", body, nil); err != nil {
		return fmt.Errorf("cancel token orders %s: %w", tokenID, err)
	}
	return nil
}

// CancelMarketOrders cancels every open order for one market, both
// outcome tokens.
func (tc *TradingClient) CancelMarketOrders(ctx context.Context, conditionID string) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel market orders: creds: %w", err)
	}

	body := clobCancelBody{Market: conditionID}
	if err := tc.auth.doL2(ctx, http.MethodDelete, "/cancel-market-orders", body, nil); err != nil {
		return fmt.Errorf("cancel market orders %s: %w", conditionID, err)
	}
	return nil
}

// GetOpenOrders returns every currently resting order for this account.
func (tc *TradingClient) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("get orders: creds: %w", err)
	}

	orders := make([]domain.Order, 0, 16)
	cursor := ""
	for {
		path := "/orders"
		if cursor != "" {
			path = "/orders?next_cursor=" + cursor
		}

		var resp clobOrdersResponse
		if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("get orders: %w", err)
		}
		for _, o := range resp.Data {
			orders = append(orders, mapOpenOrder(o))
		}

		// "LTE=" is the CLOB's end-of-pages sentinel.
		if resp.NextCursor == "" || resp.NextCursor == "LTE=" {
			return orders, nil
		}
		cursor = resp.NextCursor
	}
}

// GetPositions returns every outcome-token position for this account from
// the data API.
func (tc *TradingClient) GetPositions(ctx context.Context) ([]domain.Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", tc.auth.dataBase, tc.auth.address.Hex())

	var raw []dataPosition
	if err := tc.auth.get(ctx, tc.auth.dataLimiter, url, &raw); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return mapPositions(raw), nil
}

// GetBalance returns the on-chain USDC.e balance of the wallet.
func (tc *TradingClient) GetBalance(ctx context.Context) (float64, error) {
	callData, err := balanceOfABI.Pack("balanceOf", tc.auth.address)
	if err != nil {
		return 0, fmt.Errorf("get balance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := tc.rpcClient.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("get balance: rpc call: %w", err)
	}

	vals, err := balanceOfABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("get balance: unpack: %w", err)
	}

	raw := vals[0].(*big.Int)
	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetFloat64(1e6)).Float64()
	return bal, nil
}

// orderAlreadyGone reports whether a cancel failure means the order no
// longer exists, which the engine treats as a successful cancel.
func orderAlreadyGone(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	body := strings.ToLower(apiErr.body)
	return strings.Contains(body, "not found") ||
		strings.Contains(body, "already") ||
		strings.Contains(body, "order does not exist")
}
