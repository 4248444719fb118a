package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dtroode/fieldops/internal/model"
)

func TestCodec_Registered(t *testing.T) {
	assert.NotNil(t, encoding.GetCodec(CodecName))
}

func TestCodec_KeepsIntegers(t *testing.T) {
	c := Codec{}

	data, err := c.Marshal(&AddRequest{Collection: "tasks", Fields: map[string]any{"createdAt": int64(1718000000123)}})
	require.NoError(t, err)

	var got AddRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, "tasks", got.Collection)
	assert.Equal(t, json.Number("1718000000123"), got.Fields["createdAt"])
}

func TestCodec_ProtoMessages(t *testing.T) {
	c := Codec{}

	data, err := c.Marshal(&emptypb.Empty{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
	require.NoError(t, c.Unmarshal(data, &emptypb.Empty{}))
}

func TestCodec_BadInput(t *testing.T) {
	var got Snapshot
	require.Error(t, Codec{}.Unmarshal([]byte("{"), &got))
}

func TestStreamError(t *testing.T) {
	se := StreamErrorFromStatus(status.Error(codes.PermissionDenied, "nope"))
	assert.Equal(t, uint32(codes.PermissionDenied), se.Code)
	assert.Equal(t, "nope", se.Message)

	st, ok := status.FromError(se.Err())
	require.True(t, ok)
	assert.Equal(t, codes.PermissionDenied, st.Code())

	var nilErr *StreamError
	assert.NoError(t, nilErr.Err())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: model.ErrUnavailable},
		{name: "deadline", err: status.Error(codes.DeadlineExceeded, "slow"), want: model.ErrUnavailable},
		{name: "not found", err: status.Error(codes.NotFound, "gone"), want: model.ErrNotFound},
		{name: "permission", err: status.Error(codes.PermissionDenied, "no"), want: model.ErrPermissionDenied},
		{name: "exists", err: status.Error(codes.AlreadyExists, "dup"), want: model.ErrAlreadyExists},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "who"), want: model.ErrSessionExpired},
		{name: "canceled", err: status.Error(codes.Canceled, "bye"), want: context.Canceled},
		{name: "transport", err: errors.New("connection refused"), want: model.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, FromStatus(tt.err, model.ErrSessionExpired), tt.want)
		})
	}

	assert.NoError(t, FromStatus(nil, model.ErrSessionExpired))

	internal := status.Error(codes.Internal, "boom")
	assert.Equal(t, internal, FromStatus(internal, model.ErrSessionExpired))
}
