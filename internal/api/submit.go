package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Outcome tags how a proposal submission resolved.
type Outcome int

const (
	// Success: transport success and the server accepted the proposal.
	Success Outcome = iota
	// Rejected: the server answered but refused the proposal.
	Rejected
	// TransportError: the call failed or the answer could not be decoded.
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a proposal submission. Reason carries the
// server-supplied message (rejection reason, or confirmation text); Detail
// carries the transport failure description.
type Result struct {
	Outcome   Outcome
	Reason    string
	Detail    string
	Reference string
}

// Succeeded builds a Success result.
func Succeeded(message string) Result { return Result{Outcome: Success, Reason: message} }

// RejectedWith builds a Rejected result.
func RejectedWith(reason string) Result { return Result{Outcome: Rejected, Reason: reason} }

// TransportFailed builds a TransportError result.
func TransportFailed(err error) Result {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result{Outcome: TransportError, Detail: detail}
}

// PriceChangeRequest proposes new prices for one product. The server applies
// it only after separate approval.
type PriceChangeRequest struct {
	ProductID      int     `json:"product_id"`
	CostPrice      float64 `json:"cost_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	SellingPrice   float64 `json:"selling_price"`
}

// Normalize clamps invalid prices to 0.
func (r PriceChangeRequest) Normalize() PriceChangeRequest {
	r.CostPrice = nonNegative(r.CostPrice)
	r.WholesalePrice = nonNegative(r.WholesalePrice)
	r.SellingPrice = nonNegative(r.SellingPrice)
	return r
}

// RestockKind is the product family a restock request targets.
type RestockKind string

const (
	RestockMoto  RestockKind = "moto"
	RestockPiece RestockKind = "piece"
)

// RestockLine is one product entry of a restock request.
type RestockLine struct {
	ProductID      int     `json:"id"`
	Quantity       int     `json:"quantity"`
	CostPrice      float64 `json:"cost_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	SellingPrice   float64 `json:"selling_price"`
	TotalCost      float64 `json:"total_cost"`
}

// RestockRequest proposes a warehouse restock; it is validated downstream.
type RestockRequest struct {
	Kind          RestockKind   `json:"kind"`
	ProviderID    int           `json:"provider_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Lines         []RestockLine `json:"products"`
}

type priceResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type restockResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	RequestID     int    `json:"request_id"`
	InvoiceNumber string `json:"invoice_number"`
}

// SubmitPriceChange sends a price-change proposal.
func (c *Client) SubmitPriceChange(ctx context.Context, req PriceChangeRequest) Result {
	req = req.Normalize()
	status, data, err := c.postJSON(ctx, EndpointPrice, c.settings.PricePath, req)
	log := c.logger.With(zap.String("endpoint", EndpointPrice), zap.Int("product_id", req.ProductID))
	if err != nil {
		c.metrics.count(EndpointPrice, outcomeTransport)
		log.Warn("price change failed", zap.Error(err))
		return TransportFailed(err)
	}
	var decoded priceResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.metrics.count(EndpointPrice, outcomeHTTPError)
		log.Warn("price change answer undecodable", zap.Int("status", status), zap.Error(err))
		return TransportFailed(fmt.Errorf("%w: %v", &StatusError{Endpoint: EndpointPrice, Code: status}, err))
	}
	if status >= 200 && status <= 299 && decoded.OK {
		c.metrics.count(EndpointPrice, outcomeOK)
		log.Info("price change proposed")
		return Succeeded("")
	}
	c.metrics.count(EndpointPrice, outcomeRejected)
	log.Info("price change rejected", zap.Int("status", status), zap.String("reason", decoded.Error))
	return RejectedWith(strings.TrimSpace(decoded.Error))
}

// SubmitRestock sends a restock proposal.
func (c *Client) SubmitRestock(ctx context.Context, req RestockRequest) Result {
	for i := range req.Lines {
		line := &req.Lines[i]
		line.CostPrice = nonNegative(line.CostPrice)
		line.WholesalePrice = nonNegative(line.WholesalePrice)
		line.SellingPrice = nonNegative(line.SellingPrice)
		line.TotalCost = float64(line.Quantity) * line.CostPrice
	}
	status, data, err := c.postJSON(ctx, EndpointRestock, c.settings.RestockPath, req)
	log := c.logger.With(zap.String("endpoint", EndpointRestock), zap.String("kind", string(req.Kind)))
	if err != nil {
		c.metrics.count(EndpointRestock, outcomeTransport)
		log.Warn("restock failed", zap.Error(err))
		return TransportFailed(err)
	}
	var decoded restockResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.metrics.count(EndpointRestock, outcomeHTTPError)
		log.Warn("restock answer undecodable", zap.Int("status", status), zap.Error(err))
		return TransportFailed(fmt.Errorf("%w: %v", &StatusError{Endpoint: EndpointRestock, Code: status}, err))
	}
	if status >= 200 && status <= 299 && decoded.Success {
		c.metrics.count(EndpointRestock, outcomeOK)
		log.Info("restock proposed", zap.Int("request_id", decoded.RequestID), zap.String("invoice", decoded.InvoiceNumber))
		res := Succeeded(strings.TrimSpace(decoded.Message))
		res.Reference = decoded.InvoiceNumber
		return res
	}
	c.metrics.count(EndpointRestock, outcomeRejected)
	log.Info("restock rejected", zap.Int("status", status), zap.String("reason", decoded.Message))
	return RejectedWith(strings.TrimSpace(decoded.Message))
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
