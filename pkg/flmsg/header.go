package flmsg

import "github.com/nimbusstream/fluvio-go/pkg/flbin"

// RequestHeader is prefixed to every request body: 16-bit API key,
// 16-bit API version, 32-bit correlation id, optional UTF-8 client id.
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      *string
}

// Encode writes the header fields to w.
func (h RequestHeader) Encode(w *flbin.Writer) {
	w.Int16(h.APIKey)
	w.Int16(h.APIVersion)
	w.Int32(h.CorrelationID)
	w.NullableString(h.ClientID)
}

// ResponseHeader is the prefix of every response body: just the echoed
// correlation id. The rest of the body follows immediately.
type ResponseHeader struct {
	CorrelationID int32
}

// DecodeResponseHeader reads the correlation id prefix from r.
func DecodeResponseHeader(r *flbin.Reader) ResponseHeader {
	return ResponseHeader{CorrelationID: r.Int32()}
}
