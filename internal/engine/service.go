package engine

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
	"github.com/GriffinCanCode/textcam/internal/still"
)

// Wire names of the recognizer service. Messages are google.protobuf.Struct:
// request {image: base64, mime_type},
// response {text, confidence}.
const (
	ServiceName     = "textcam.v1.Recognizer"
	RecognizeMethod = "/textcam.v1.Recognizer/Recognize"
)

// RecognizerServer is the server side of the recognizer service.
type RecognizerServer interface {
	Recognize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRecognizerServer registers srv on s.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, srv RecognizerServer) {
	s.RegisterService(&recognizerServiceDesc, srv)
}

var recognizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recognize", Handler: recognizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "textcam/v1/recognizer.proto",
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecognizerServer).Recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecognizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecognizerServer).Recognize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ImageRecognizer is satisfied by both Backend and *Engine.
type ImageRecognizer interface {
	Recognize(ctx context.Context, img still.Image) (Recognition, error)
}

// BackendServer serves a recognizer over the recognizer service.
type BackendServer struct {
	backend ImageRecognizer
}

// NewBackendServer wraps r. Pass an *Engine to refuse requests until the
// backend is initialized.
func NewBackendServer(r ImageRecognizer) *BackendServer {
	return &BackendServer{backend: r}
}

func (s *BackendServer) Recognize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["image"].GetStringValue())
	if err != nil || len(data) == 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "image must be non-empty base64")
	}
	mime := f["mime_type"].GetStringValue()
	if mime == "" {
		mime = still.MIMEType
	}

	rec, err := s.backend.Recognize(ctx, still.Image{Data: data, MIMEType: mime})
	if err != nil {
		return nil, classify(err)
	}
	rec = normalize(rec)
	return structpb.NewStruct(map[string]any{
		"text":       rec.Text,
		"confidence": rec.Confidence,
	})
}
