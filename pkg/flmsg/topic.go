package flmsg

import (
	"sort"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// TopicObjectType is the type_label carried by every admin envelope in
// this client.
const TopicObjectType = "topic"

// Envelope wraps every admin request/response body:
// {type_label: string, body_len: u32, body: bytes}.
type Envelope struct {
	TypeLabel string
	Body      []byte
}

// Encode serializes the envelope.
func (e Envelope) Encode() []byte {
	w := flbin.NewWriter(8 + len(e.TypeLabel) + len(e.Body))
	w.String(e.TypeLabel)
	w.Uint32(uint32(len(e.Body)))
	w.Raw(e.Body)
	return w.Bytes()
}

// DecodeEnvelope reads an Envelope from r.
func DecodeEnvelope(r *flbin.Reader) Envelope {
	label := r.String()
	n := r.Uint32()
	body := r.Raw(int(n))
	return Envelope{TypeLabel: label, Body: body}
}

// TopicSpecKind selects which variant of the topic_spec tagged union is
// populated.
type TopicSpecKind int8

const (
	TopicSpecAssigned TopicSpecKind = 0
	TopicSpecComputed TopicSpecKind = 1
	TopicSpecMirror   TopicSpecKind = 2
)

// TopicSpec is the tagged union describing how a topic's partitions are
// laid out. Mirror is a recognized tag with no supported encoding: this
// client does not implement topic mirroring.
type TopicSpec struct {
	Kind TopicSpecKind

	// Computed
	Partitions        int32
	ReplicationFactor int32
	IgnoreRack        bool

	// Assigned: partition id -> ordered set of broker ids.
	Assignment map[int32][]int32
}

// Encode writes the tagged union to w. It fails with flerr.Unimplemented
// for the Mirror variant: topic mirroring has no supported encoding.
func (s TopicSpec) Encode(w *flbin.Writer) error {
	switch s.Kind {
	case TopicSpecAssigned:
		w.Int8(0)
		partitions := make([]int32, 0, len(s.Assignment))
		for p := range s.Assignment {
			partitions = append(partitions, p)
		}
		sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
		w.Int32(int32(len(partitions)))
		for _, p := range partitions {
			w.Int32(p)
			replicas := s.Assignment[p]
			w.Int32(int32(len(replicas)))
			for _, b := range replicas {
				w.Int32(b)
			}
		}
		return nil
	case TopicSpecComputed:
		w.Int8(1)
		w.Int32(s.Partitions)
		w.Int32(s.ReplicationFactor)
		w.OptionalTag(s.IgnoreRack)
		return nil
	case TopicSpecMirror:
		return flerr.Unimplemented
	default:
		return flerr.Unimplemented
	}
}

// DecodeTopicSpec reads a tagged union from r.
func DecodeTopicSpec(r *flbin.Reader) TopicSpec {
	tag := r.Int8()
	switch TopicSpecKind(tag) {
	case TopicSpecAssigned:
		count := r.Int32()
		assignment := make(map[int32][]int32, max0(count))
		for i := int32(0); i < count; i++ {
			partition := r.Int32()
			replicaCount := r.Int32()
			replicas := make([]int32, 0, max0(replicaCount))
			for j := int32(0); j < replicaCount; j++ {
				replicas = append(replicas, r.Int32())
			}
			assignment[partition] = replicas
		}
		return TopicSpec{Kind: TopicSpecAssigned, Assignment: assignment}
	case TopicSpecComputed:
		return TopicSpec{
			Kind:              TopicSpecComputed,
			Partitions:        r.Int32(),
			ReplicationFactor: r.Int32(),
			IgnoreRack:        r.OptionalTag(),
		}
	default:
		return TopicSpec{Kind: TopicSpecMirror}
	}
}

// CreateTopicRequest is the body of the Create admin request (API key
// 1001, version 25). The cleanup policy, storage config, and
// deduplication slots are reserved and always encoded absent; the
// compression algorithm slot is always encoded as "any". This client
// does not implement compression, cleanup, storage, or deduplication
// policy negotiation.
type CreateTopicRequest struct {
	Name    string
	DryRun  bool
	Timeout *int32
	Spec    TopicSpec
	System  bool
}

// Encode serializes the Create request body, returning flerr.Unimplemented
// if Spec is a Mirror.
func (req CreateTopicRequest) Encode() ([]byte, error) {
	w := flbin.NewWriter(64)
	w.String(req.Name)
	w.OptionalTag(req.DryRun)
	if req.Timeout != nil {
		w.OptionalTag(true)
		w.Int32(*req.Timeout)
	} else {
		w.OptionalTag(false)
	}
	if err := req.Spec.Encode(w); err != nil {
		return nil, err
	}
	w.OptionalTag(false)     // cleanup policy: reserved, always absent
	w.OptionalTag(false)     // storage config: reserved, always absent
	w.String("any")          // compression algorithm: reserved, always default
	w.OptionalTag(false)     // deduplication: reserved, always absent
	w.OptionalTag(req.System)
	return w.Bytes(), nil
}

// DeleteTopicRequest is the body of the Delete admin request (API key
// 1002, version 25).
type DeleteTopicRequest struct {
	Name  string
	Force bool
}

// Encode serializes the Delete request body.
func (req DeleteTopicRequest) Encode() []byte {
	w := flbin.NewWriter(8 + len(req.Name))
	w.String(req.Name)
	w.OptionalTag(req.Force)
	return w.Bytes()
}

// ListTopicsRequest is the body of the List admin request (API key 1003,
// version 25, control-plane connection).
type ListTopicsRequest struct {
	Filters []string
	Summary bool
	System  bool
}

// Encode serializes the List request body.
func (req ListTopicsRequest) Encode() []byte {
	w := flbin.NewWriter(16)
	w.Int32(int32(len(req.Filters)))
	for _, f := range req.Filters {
		w.String(f)
	}
	w.OptionalTag(req.Summary)
	w.OptionalTag(req.System)
	return w.Bytes()
}

// TopicResolutionState is a topic's provisioning lifecycle state.
type TopicResolutionState int8

const (
	TopicResolutionInit TopicResolutionState = iota
	TopicResolutionPending
	TopicResolutionInsufficient
	TopicResolutionInvalid
	TopicResolutionProvisioned
	TopicResolutionDeleting
)

func (s TopicResolutionState) String() string {
	switch s {
	case TopicResolutionInit:
		return "Init"
	case TopicResolutionPending:
		return "Pending"
	case TopicResolutionInsufficient:
		return "Insufficient"
	case TopicResolutionInvalid:
		return "Invalid"
	case TopicResolutionProvisioned:
		return "Provisioned"
	case TopicResolutionDeleting:
		return "Deleting"
	default:
		return "Unknown"
	}
}

// TopicStatus is the provisioning state returned for a topic by List.
// Replicas and Mirrors are both encoded on the wire with a 16-bit entry
// count rather than the 32-bit width used everywhere else in this
// protocol, an oddity that must be respected on both encode and decode.
type TopicStatus struct {
	Resolution TopicResolutionState
	Replicas   map[int32][]int32
	Mirrors    map[int32][]int32
	Reason     *string
}

func decodeReplicaMap16(r *flbin.Reader) map[int32][]int32 {
	count := r.Uint16()
	m := make(map[int32][]int32, count)
	for i := uint16(0); i < count; i++ {
		partition := r.Int32()
		replicaCount := r.Int32()
		replicas := make([]int32, 0, max0(replicaCount))
		for j := int32(0); j < replicaCount; j++ {
			replicas = append(replicas, r.Int32())
		}
		m[partition] = replicas
	}
	return m
}

func encodeReplicaMap16(w *flbin.Writer, m map[int32][]int32) {
	partitions := make([]int32, 0, len(m))
	for p := range m {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	w.Uint16(uint16(len(partitions)))
	for _, p := range partitions {
		w.Int32(p)
		replicas := m[p]
		w.Int32(int32(len(replicas)))
		for _, b := range replicas {
			w.Int32(b)
		}
	}
}

// DecodeTopicStatus reads a TopicStatus from r.
func DecodeTopicStatus(r *flbin.Reader) TopicStatus {
	return TopicStatus{
		Resolution: TopicResolutionState(r.Int8()),
		Replicas:   decodeReplicaMap16(r),
		Mirrors:    decodeReplicaMap16(r),
		Reason:     r.NullableString(),
	}
}

// Encode serializes a TopicStatus (used by tests and any server-side
// simulation of List responses).
func (s TopicStatus) Encode(w *flbin.Writer) {
	w.Int8(int8(s.Resolution))
	encodeReplicaMap16(w, s.Replicas)
	encodeReplicaMap16(w, s.Mirrors)
	w.NullableString(s.Reason)
}

// ListedTopic is one entry of a List response's topic list.
type ListedTopic struct {
	Name   string
	Spec   TopicSpec
	Status TopicStatus
}

// ListTopicsResponse is the decoded body of a List response, following
// the envelope.
type ListTopicsResponse struct {
	Envelope Envelope
	Topics   []ListedTopic
}

// DecodeListTopicsResponse reads a ListTopicsResponse from r.
func DecodeListTopicsResponse(r *flbin.Reader) ListTopicsResponse {
	env := DecodeEnvelope(r)
	count := r.Int32()
	topics := make([]ListedTopic, 0, max0(count))
	for i := int32(0); i < count; i++ {
		topics = append(topics, ListedTopic{
			Name:   r.String(),
			Spec:   DecodeTopicSpec(r),
			Status: DecodeTopicStatus(r),
		})
	}
	return ListTopicsResponse{Envelope: env, Topics: topics}
}

// TopicOpStatus is the per-topic status block common to Create and
// Delete responses.
type TopicOpStatus struct {
	Name         string
	ErrorCode    int16
	ErrorMessage *string
}

// DecodeTopicOpStatus reads a TopicOpStatus from r.
func DecodeTopicOpStatus(r *flbin.Reader) TopicOpStatus {
	return TopicOpStatus{
		Name:         r.String(),
		ErrorCode:    r.Int16(),
		ErrorMessage: r.NullableString(),
	}
}

// validTopicNameBytes reports whether name is a valid topic name: at most
// 63 bytes, lowercase ASCII letters, digits, and '-', never starting or
// ending with '-'.
func validTopicNameBytes(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

// ValidateTopicName checks name against the client-side validation rule
// applied before any admin request reaches the wire.
func ValidateTopicName(name string) error {
	if !validTopicNameBytes(name) {
		return flerr.InvalidConfiguration
	}
	return nil
}
