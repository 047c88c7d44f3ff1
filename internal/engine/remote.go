package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/resilience"
	"github.com/GriffinCanCode/textcam/internal/still"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

// Remote client defaults
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
	HealthRetryInterval     = 500 * time.Millisecond
)

// Remote delegates recognition to a textcam.v1.Recognizer gRPC service.
type Remote struct {
	addr     string
	dialOpts []grpc.DialOption

	conn    *grpc.ClientConn
	breaker *resilience.Breaker
}

// NewRemote creates a remote backend for addr. Extra dial options are
// appended to the defaults.
func NewRemote(addr string, opts ...grpc.DialOption) *Remote {
	breaker := resilience.New(resilience.DefaultConfig("recognizer")).
		WithHook(func(from, to resilience.State) {
			slog.Warn("recognizer circuit breaker", "addr", addr, "from", from.String(), "to", to.String())
		})
	return &Remote{
		addr:     addr,
		dialOpts: opts,
		breaker:  breaker,
	}
}

func (r *Remote) Name() string { return BackendRemote }

// Init connects and blocks until the recognizer reports SERVING or ctx
// ends. A recognizer that is still loading its backend, or not listening
// yet, keeps the engine initializing. Languages are configured on the
// recognizer itself.
func (r *Remote) Init(ctx context.Context, _ []string) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, r.dialOpts...)

	conn, err := grpc.NewClient(r.addr, opts...)
	if err != nil {
		return fmt.Errorf("dial recognizer %s: %w", r.addr, err)
	}
	if err := r.waitServing(ctx, healthpb.NewHealthClient(conn)); err != nil {
		_ = conn.Close()
		return err
	}

	r.conn = conn
	return nil
}

// waitServing follows the recognizer's health stream, re-opening it after
// transport errors, until the service is SERVING.
func (r *Remote) waitServing(ctx context.Context, hc healthpb.HealthClient) error {
	req := &healthpb.HealthCheckRequest{Service: ServiceName}
	for {
		err := watchUntilServing(ctx, hc, req, r.addr)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("recognizer %s not serving: %w", r.addr, ctx.Err())
		}
		if status.Code(err) == codes.Unimplemented {
			return fmt.Errorf("recognizer health watch: %w", err)
		}
		slog.Debug("recognizer health stream ended", "addr", r.addr, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("recognizer %s not serving: %w", r.addr, ctx.Err())
		case <-time.After(HealthRetryInterval):
		}
	}
}

func watchUntilServing(ctx context.Context, hc healthpb.HealthClient, req *healthpb.HealthCheckRequest, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := hc.Watch(ctx, req, grpc.WaitForReady(true))
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if err != nil {
			return err
		}
		if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		slog.Info("waiting for recognizer", "addr", addr, "status", resp.GetStatus().String())
	}
}

func (r *Remote) Recognize(ctx context.Context, img still.Image) (Recognition, error) {
	req, err := encodeRequest(img)
	if err != nil {
		return Recognition{}, err
	}

	resp, err := resilience.Do(ctx, r.breaker, func(ctx context.Context) (*structpb.Struct, error) {
		out := new(structpb.Struct)
		if err := r.conn.Invoke(ctx, RecognizeMethod, req, out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			return Recognition{}, apperrors.Wrap(err, apperrors.Unavailable, "recognizer unavailable").
				WithMetadata("breaker", r.breaker.State().String())
		}
		if ctx.Err() != nil {
			return Recognition{}, ctx.Err()
		}
		return Recognition{}, apperrors.FromGRPCError(err)
	}
	return decodeResponse(resp), nil
}

func (r *Remote) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func encodeRequest(img still.Image) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{
		"image":     base64.StdEncoding.EncodeToString(img.Data),
		"mime_type": img.MIMEType,
	})
	if err != nil {
		return nil, fmt.Errorf("encode recognize request: %w", err)
	}
	return req, nil
}

func decodeResponse(s *structpb.Struct) Recognition {
	f := s.GetFields()
	return Recognition{
		Text:       f["text"].GetStringValue(),
		Confidence: f["confidence"].GetNumberValue(),
	}
}
