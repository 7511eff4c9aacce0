package fluvio

import (
	"context"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
	"github.com/nimbusstream/fluvio-go/pkg/flmsg"
)

// TopicSpec, TopicStatus, and ListedTopic are the public admin types,
// aliased from flmsg so callers never need to import the wire-protocol
// package directly.
type (
	TopicSpec   = flmsg.TopicSpec
	TopicStatus = flmsg.TopicStatus
	ListedTopic = flmsg.ListedTopic
)

// NewComputedTopicSpec builds a TopicSpec whose partitions and replicas
// are assigned by the cluster.
func NewComputedTopicSpec(partitions, replicationFactor int32, ignoreRack bool) TopicSpec {
	return TopicSpec{
		Kind:              flmsg.TopicSpecComputed,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		IgnoreRack:        ignoreRack,
	}
}

// NewAssignedTopicSpec builds a TopicSpec with an explicit partition id ->
// ordered replica broker ids assignment.
func NewAssignedTopicSpec(assignment map[int32][]int32) TopicSpec {
	return TopicSpec{Kind: flmsg.TopicSpecAssigned, Assignment: assignment}
}

// Admin exposes topic lifecycle operations over the control-plane
// connection.
type Admin struct {
	conn  *conn
	hooks Hooks
}

func newAdmin(c *conn, hooks Hooks) *Admin {
	return &Admin{conn: c, hooks: hooks}
}

// CreateTopic provisions a topic with the given spec. The name is
// validated client-side before the request reaches the wire.
func (a *Admin) CreateTopic(ctx context.Context, name string, spec TopicSpec, dryRun bool) error {
	if err := flmsg.ValidateTopicName(name); err != nil {
		return err
	}
	req := flmsg.CreateTopicRequest{Name: name, DryRun: dryRun, Spec: spec}
	reqBody, err := req.Encode()
	if err != nil {
		return err
	}
	env := flmsg.Envelope{TypeLabel: flmsg.TopicObjectType, Body: reqBody}

	respBody, err := a.conn.do(ctx, flmsg.APIKeyCreateTopics, flmsg.CreateTopicsVersion, env.Encode())
	if err != nil {
		return err
	}
	status := flmsg.DecodeTopicOpStatus(flbin.NewReader(respBody))
	if status.ErrorCode != 0 {
		msg := ""
		if status.ErrorMessage != nil {
			msg = *status.ErrorMessage
		}
		return flerr.NewProtocolError(status.ErrorCode, msg)
	}
	return nil
}

// DeleteTopic removes a topic.
func (a *Admin) DeleteTopic(ctx context.Context, name string, force bool) error {
	if err := flmsg.ValidateTopicName(name); err != nil {
		return err
	}
	req := flmsg.DeleteTopicRequest{Name: name, Force: force}
	env := flmsg.Envelope{TypeLabel: flmsg.TopicObjectType, Body: req.Encode()}

	respBody, err := a.conn.do(ctx, flmsg.APIKeyDeleteTopics, flmsg.DeleteTopicsVersion, env.Encode())
	if err != nil {
		return err
	}
	status := flmsg.DecodeTopicOpStatus(flbin.NewReader(respBody))
	if status.ErrorCode != 0 {
		msg := ""
		if status.ErrorMessage != nil {
			msg = *status.ErrorMessage
		}
		return flerr.NewProtocolError(status.ErrorCode, msg)
	}
	return nil
}

// ListTopics returns the topics matching filters (empty for all topics).
// APIKeyListTopics (1003) shares its numeric value with
// APIKeyStreamFetch; the two are disambiguated only by which connection
// (control vs. data plane) the request travels on, which a.conn fixes
// for the lifetime of this Admin.
func (a *Admin) ListTopics(ctx context.Context, filters []string, summary, system bool) ([]ListedTopic, error) {
	req := flmsg.ListTopicsRequest{Filters: filters, Summary: summary, System: system}
	env := flmsg.Envelope{TypeLabel: flmsg.TopicObjectType, Body: req.Encode()}

	respBody, err := a.conn.do(ctx, flmsg.APIKeyListTopics, flmsg.ListTopicsVersion, env.Encode())
	if err != nil {
		return nil, err
	}
	resp := flmsg.DecodeListTopicsResponse(flbin.NewReader(respBody))
	return resp.Topics, nil
}
