package tron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// maxEventPages caps fingerprint paging within one query.
const maxEventPages = 10

// Event is a contract log as served by the event query API.
type Event struct {
	BlockNumber     uint64      `json:"block_number"`
	BlockTimestamp  int64       `json:"block_timestamp"`
	ContractAddress string      `json:"contract_address"`
	EventIndex      int         `json:"event_index"`
	EventName       string      `json:"event_name"`
	Result          EventResult `json:"result"`
	TransactionID   string      `json:"transaction_id"`
}

// Key identifies an event uniquely across queries.
func (e Event) Key() string {
	return e.TransactionID + ":" + strconv.Itoa(e.EventIndex)
}

// EventResult holds decoded event arguments keyed by parameter name. Values
// are kept in their textual form; numbers arriving unquoted are preserved.
type EventResult map[string]string

func (r *EventResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(EventResult, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	*r = out
	return nil
}

// EventQuery selects events of one contract.
type EventQuery struct {
	EventName string
	// SinceMillis is an inclusive lower bound on block timestamp.
	SinceMillis   int64
	OnlyConfirmed bool
	Limit         int
}

type eventsResponse struct {
	Data    []Event `json:"data"`
	Success bool    `json:"success"`
	Error   string  `json:"error"`
	Meta    struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

// ContractEvents returns events emitted by contract in ascending block order.
func (c *Client) ContractEvents(ctx context.Context, contract Address, q EventQuery) ([]Event, error) {
	params := url.Values{}
	if q.EventName != "" {
		params.Set("event_name", q.EventName)
	}
	if q.SinceMillis > 0 {
		params.Set("min_block_timestamp", strconv.FormatInt(q.SinceMillis, 10))
	}
	if q.OnlyConfirmed {
		params.Set("only_confirmed", "true")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order_by", "block_timestamp,asc")

	var events []Event
	for page := 0; page < maxEventPages; page++ {
		u := fmt.Sprintf("%s/v1/contracts/%s/events?%s", c.eventEndpoint, contract.Base58(), params.Encode())

		var resp eventsResponse
		if err := c.get(ctx, u, &resp); err != nil {
			return events, fmt.Errorf("query %s events: %w", q.EventName, err)
		}
		if !resp.Success {
			return events, fmt.Errorf("query %s events: %s", q.EventName, resp.Error)
		}
		events = append(events, resp.Data...)

		if resp.Meta.Fingerprint == "" || len(resp.Data) < limit {
			break
		}
		params.Set("fingerprint", resp.Meta.Fingerprint)
	}
	return events, nil
}
