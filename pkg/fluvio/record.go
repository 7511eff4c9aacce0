package fluvio

import "github.com/nimbusstream/fluvio-go/pkg/flmsg"

// Record and Header are the public record types, aliased from flmsg so
// callers never need to import the wire-protocol package directly.
type (
	Record = flmsg.Record
	Header = flmsg.Header
)
