package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	mfaerrors "github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/mfagate.v1.Verification/Verify"}

func TestRecoveryInterceptor(t *testing.T) {
	ic := NewInterceptorChain(logger.NewNoopLogger())

	_, err := ic.UnaryRecoveryInterceptor()(context.Background(), nil, testInfo,
		func(context.Context, interface{}) (interface{}, error) { panic("boom") })

	assert.Equal(t, grpcCodes.Internal, status.Code(err))
}

func TestErrorInterceptor(t *testing.T) {
	ic := NewInterceptorChain(logger.NewNoopLogger())
	tests := []struct {
		name string
		err  error
		want grpcCodes.Code
	}{
		{"invalid code", mfaerrors.ErrInvalidCode, grpcCodes.PermissionDenied},
		{"insufficient", mfaerrors.ErrInsufficientCredentials, grpcCodes.Unauthenticated},
		{"unsupported", mfaerrors.ErrAttributeStorageUnsupported, grpcCodes.Unimplemented},
		{"remote", mfaerrors.ErrRemoteUnavailable, grpcCodes.Unavailable},
		{"wrapped", mfaerrors.Wrap(errors.New("dial"), mfaerrors.ErrServiceUnavailable), grpcCodes.Unavailable},
		{"plain", errors.New("unexpected"), grpcCodes.Internal},
		{"status passthrough", status.Error(grpcCodes.Aborted, "aborted"), grpcCodes.Aborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ic.UnaryErrorInterceptor()(context.Background(), nil, testInfo,
				func(context.Context, interface{}) (interface{}, error) { return nil, tt.err })
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestHealthServer_ReflectsChecks(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := NewHealthServer(logger.NewNoopLogger(), map[string]func(context.Context) error{
		"store": func(context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("down")
		},
	}, 0)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	healthy.Store(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.Refresh(context.Background()))

	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ""})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
