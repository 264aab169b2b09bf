// Package llm provides the wire representations shared by the chat relay and its
// streaming consumer: conversation messages, relay requests, and the two reply shapes.
package llm

// ErrorResponse is the JSON body of every failed relay response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// User-facing messages carried in error bodies and fallback replies.
const (
	MsgRateLimited     = "Rate limits exceeded, please try again later."
	MsgPaymentRequired = "Payment required, please add funds to continue using the assistant."
	MsgGatewayError    = "AI gateway error"
	MsgDefaultCaption  = "Here's a visual representation to help you understand better."
	MsgClientFallback  = "Sorry, I encountered an error. Please try again."
	MsgHistoryCleared  = "Chat history cleared"
)
