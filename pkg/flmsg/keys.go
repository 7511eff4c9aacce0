package flmsg

// API keys identify the request type in every request header.
// StreamFetch (data plane) and ListTopics (control plane) share the
// numeric value 1003, a protocol oddity disambiguated only by which
// connection a request travels on.
const (
	APIKeyProduce              int16 = 0
	APIKeyFetch                int16 = 1
	APIKeyStreamFetch          int16 = 1003
	APIKeyCreateTopics         int16 = 1001
	APIKeyDeleteTopics         int16 = 1002
	APIKeyListTopics           int16 = 1003
	APIKeyFetchConsumerOffsets int16 = 1005
	APIKeyUpdateConsumerOffset int16 = 1006
)

// Wire versions used by this client for each request.
const (
	ProduceVersion              int16 = 25
	StreamFetchVersion          int16 = 10
	CreateTopicsVersion         int16 = 25
	DeleteTopicsVersion         int16 = 25
	ListTopicsVersion           int16 = 25
	FetchConsumerOffsetsVersion int16 = 1
	UpdateConsumerOffsetVersion int16 = 1
)
