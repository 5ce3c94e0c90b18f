package pullandbear

// StockResponse is the payload of the Pull&Bear stock endpoint: one stock
// list per parent product.
type StockResponse struct {
	Stocks []ParentStock `json:"stocks"`
}

type ParentStock struct {
	ProductID int64   `json:"productId"`
	Stocks    []Stock `json:"stocks"`
}

type Stock struct {
	ID            int64  `json:"id"`
	Availability  string `json:"availability"`
	TypeThreshold string `json:"typeThreshold"`
}
