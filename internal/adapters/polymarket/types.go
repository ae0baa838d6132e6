package polymarket

import "encoding/json"

// Raw DTOs for the Polymarket APIs. Only used inside this package; the
// conversion to domain entities lives in mapping.go.

// --- CLOB REST ---

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

type clobCancelBody struct {
	Market  string `json:"market,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
}

type clobOpenOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

type clobOrdersResponse struct {
	Data       []clobOpenOrder `json:"data"`
	NextCursor string          `json:"next_cursor"`
}

// --- Data API ---

// dataPosition is one row of GET /positions on the data API.
type dataPosition struct {
	Asset       string  `json:"asset"`
	ConditionID string  `json:"conditionId"`
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	Redeemable  bool    `json:"redeemable"`
}

// --- Websocket ---

// wsSubscription is the subscribe payload for both channels. Market
// subscriptions carry asset IDs; user subscriptions carry condition IDs
// plus the L2 credentials.
type wsSubscription struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids,omitempty"`
	Markets  []string `json:"markets,omitempty"`
	Auth     *wsAuth  `json:"auth,omitempty"`
}

type wsAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// wsBookLevel is one price level; prices and sizes come as strings.
type wsBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// wsBookMessage is a full book snapshot on the market channel.
type wsBookMessage struct {
	EventType string        `json:"event_type"`
	AssetID   string        `json:"asset_id"`
	Bids      []wsBookLevel `json:"bids"`
	Asks      []wsBookLevel `json:"asks"`
}

// wsPriceChange is one level update inside a price_change message.
type wsPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
}

type wsPriceChangeMessage struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Changes   []wsPriceChange `json:"changes"`
}

// wsOrderMessage is an order lifecycle event on the user channel.
type wsOrderMessage struct {
	EventType    string `json:"event_type"`
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Type         string `json:"type"` // PLACEMENT, UPDATE, CANCELLATION
	CreatedAt    string `json:"created_at"`
}

// wsTradeMessage is a fill event on the user channel.
type wsTradeMessage struct {
	EventType   string `json:"event_type"`
	ID          string `json:"id"`
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Status      string `json:"status"`
	MatchTime   string `json:"match_time"`
	MakerOrders []struct {
		OrderID       string `json:"order_id"`
		AssetID       string `json:"asset_id"`
		MatchedAmount string `json:"matched_amount"`
		Price         string `json:"price"`
	} `json:"maker_orders"`
	TakerOrderID string `json:"taker_order_id"`
	Owner        string `json:"owner"`
}
