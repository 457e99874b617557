package navsmoke

import (
	"encoding/json"
	"fmt"
)

const (
	MethodPageEnable        = "Page.enable"
	MethodPageNavigate      = "Page.navigate"
	MethodPageLoadEvent     = "Page.loadEventFired"
	MethodCaptureScreenshot = "Page.captureScreenshot"
	MethodGetDocument       = "DOM.getDocument"
	MethodGetOuterHTML      = "DOM.getOuterHTML"
	MethodRuntimeEnable     = "Runtime.enable"
	MethodLogEnable         = "Log.enable"
	MethodConsoleAPICalled  = "Runtime.consoleAPICalled"
	MethodLogEntryAdded     = "Log.entryAdded"
)

// Request ids are reused every cycle. Exchanges are serialized, so an id is
// never outstanding twice on the channel.
const (
	idPageEnable int64 = iota + 1
	idNavigate
	idGetDocument
	idGetOuterHTML
	idRuntimeEnable
	idLogEnable
	idScreenshot
)

// DefaultNodeID is used when DOM.getDocument does not report a root node id.
const DefaultNodeID = 1

type Request struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func NewRequest(id int64, method string, params map[string]any) Request {
	if params == nil {
		params = map[string]any{}
	}
	return Request{ID: id, Method: method, Params: params}
}

func NavigateRequest(url string) Request {
	return NewRequest(idNavigate, MethodPageNavigate, map[string]any{"url": url})
}

// CDPError is the error object of a protocol response. It matches ErrProtocol.
type CDPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *CDPError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

func (e *CDPError) Unwrap() error { return ErrProtocol }

type CDPResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *CDPError       `json:"error"`
}

type CDPEvent struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type InboundKind int

const (
	KindResponse InboundKind = iota + 1
	KindEvent
)

func (k InboundKind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Inbound is a decoded frame: exactly one of Response or Event is set,
// according to Kind.
type Inbound struct {
	Kind     InboundKind
	Response *CDPResponse
	Event    *CDPEvent
}

// Method returns the event method, or "" for responses.
func (in Inbound) Method() string {
	if in.Kind == KindEvent && in.Event != nil {
		return in.Event.Method
	}
	return ""
}

// Err returns the protocol error carried by a response, if any.
func (in Inbound) Err() error {
	if in.Kind == KindResponse && in.Response != nil && in.Response.Error != nil {
		return in.Response.Error
	}
	return nil
}

// DecodeInbound classifies a frame by the presence of "id".
func DecodeInbound(data []byte) (Inbound, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: malformed frame: %v", ErrProtocol, err)
	}
	if rawID, ok := raw["id"]; ok {
		var resp CDPResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return Inbound{}, fmt.Errorf("%w: malformed response: %v", ErrProtocol, err)
		}
		if err := json.Unmarshal(rawID, &resp.ID); err != nil {
			return Inbound{}, fmt.Errorf("%w: response id %s: %v", ErrProtocol, rawID, err)
		}
		return Inbound{Kind: KindResponse, Response: &resp}, nil
	}
	var event CDPEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return Inbound{}, fmt.Errorf("%w: malformed event: %v", ErrProtocol, err)
	}
	if event.Method == "" {
		return Inbound{}, fmt.Errorf("%w: frame has neither id nor method", ErrProtocol)
	}
	return Inbound{Kind: KindEvent, Event: &event}, nil
}
