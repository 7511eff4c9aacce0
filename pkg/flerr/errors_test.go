package flerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtocolErrorKindClassification(t *testing.T) {
	err := NewProtocolError(36, "topic foo exists")
	require.Equal(t, KindTopicAlreadyExists, err.Kind)
	require.Contains(t, err.Error(), "TopicAlreadyExists")
	require.Contains(t, err.Error(), "topic foo exists")
}

func TestProtocolErrorUnknownCode(t *testing.T) {
	err := NewProtocolError(9999, "")
	require.Equal(t, KindUnknown, err.Kind)
}

func TestIsRetriable(t *testing.T) {
	require.True(t, IsRetriable(Timeout))
	require.True(t, IsRetriable(Disconnected))
	require.False(t, IsRetriable(NewProtocolError(36, "exists")))
	require.False(t, IsRetriable(NewStreamError(1)))
	require.False(t, IsRetriable(nil))
	require.False(t, IsRetriable(errors.New("some other error")))
}

func TestStreamErrorWrapsCode(t *testing.T) {
	se := NewStreamError(1)
	require.Equal(t, KindOffsetOutOfRange, se.Kind)
	require.Contains(t, se.Error(), "1")
}
