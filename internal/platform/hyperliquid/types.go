package hyperliquid

// Wire types for the Hyperliquid info and exchange APIs. Numeric fields
// arrive as strings and are parsed at the boundary.

// assetMeta is one entry of the perp universe.
type assetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

type metaResponse struct {
	Universe []assetMeta `json:"universe"`
}

// assetCtx is the per-asset market context returned by metaAndAssetCtxs,
// index-aligned with the universe.
type assetCtx struct {
	Funding      string `json:"funding"`
	OpenInterest string `json:"openInterest"`
	MarkPx       string `json:"markPx"`
}

// bookLevel is one price level of an l2Book response.
type bookLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type l2BookResponse struct {
	Coin   string        `json:"coin"`
	Levels [][]bookLevel `json:"levels"` // [0] bids, [1] asks, best first
}

type clearinghouseResponse struct {
	MarginSummary struct {
		AccountValue string `json:"accountValue"`
	} `json:"marginSummary"`
	Withdrawable   string `json:"withdrawable"`
	AssetPositions []struct {
		Position struct {
			Coin          string `json:"coin"`
			Szi           string `json:"szi"`
			EntryPx       string `json:"entryPx"`
			UnrealizedPnl string `json:"unrealizedPnl"`
		} `json:"position"`
	} `json:"assetPositions"`
}

type fundingHistoryEntry struct {
	Coin        string `json:"coin"`
	FundingRate string `json:"fundingRate"`
	Time        int64  `json:"time"`
}

// Exchange action wire types. The msgpack field order is part of the signed
// payload and must not change.

type limitWire struct {
	Tif string `json:"tif" msgpack:"tif"`
}

type orderTypeWire struct {
	Limit *limitWire `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

type orderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	Price      string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	Type       orderTypeWire `json:"t" msgpack:"t"`
}

type orderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []orderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

type exchangeRequest struct {
	Action    orderAction  `json:"action"`
	Nonce     int64        `json:"nonce"`
	Signature rsvSignature `json:"signature"`
	Vault     *string      `json:"vaultAddress"`
}

type rsvSignature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []struct {
				Filled *struct {
					TotalSz string `json:"totalSz"`
					AvgPx   string `json:"avgPx"`
					Oid     int64  `json:"oid"`
				} `json:"filled"`
				Resting *struct {
					Oid int64 `json:"oid"`
				} `json:"resting"`
				Error string `json:"error"`
			} `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}
