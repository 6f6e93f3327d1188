// Package grpc exposes statement execution over gRPC. Messages are protobuf
// well-known types, so the service needs no generated code: the request is
// a StringValue holding one statement and the response is a Struct.
package grpc

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/internal/server"
	"github.com/minirel/minirel/pkg/types"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "minirel.v1.StatementService"
	// ExecuteMethod is the full method path of Execute.
	ExecuteMethod = "/" + ServiceName + "/Execute"

	requestIDHeader = "x-request-id"
	errorDomain     = "minirel"
)

// StatementServer is the server API for StatementService.
type StatementServer interface {
	Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatementServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatementServer).Execute(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes StatementService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "minirel/v1/statement.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv StatementServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Server implements StatementService on top of a serialized engine.
type Server struct {
	serializer *server.Serializer
}

// NewServer creates a statement server.
func NewServer(s *server.Serializer) *Server {
	return &Server{serializer: s}
}

// Execute runs one statement and returns its result as a Struct with the
// fields kind, columns, rows, row_id, affected and request_id.
func (s *Server) Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	requestID := RequestIDFromContext(ctx)
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "statement is required")
	}

	res, err := s.serializer.Execute(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return resultToStruct(res, requestID)
}

func resultToStruct(res *engine.Result, requestID string) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		"kind":       structpb.NewStringValue(res.Kind.String()),
		"request_id": structpb.NewStringValue(requestID),
	}

	switch res.Kind {
	case engine.ResultRowID:
		fields["row_id"] = structpb.NewNumberValue(float64(res.RowID))
	case engine.ResultCount:
		fields["affected"] = structpb.NewNumberValue(float64(res.Affected))
	case engine.ResultRows:
		cols := make([]*structpb.Value, len(res.Columns))
		for i, c := range res.Columns {
			cols[i] = structpb.NewStringValue(c)
		}
		fields["columns"] = structpb.NewListValue(&structpb.ListValue{Values: cols})

		rs := res.ResultSet()
		rows := make([]*structpb.Value, rs.Len())
		for i := range rows {
			vals := rs.Row(i)
			cells := make([]*structpb.Value, len(vals))
			for j, v := range vals {
				cells[j] = valueToProto(v)
			}
			rows[i] = structpb.NewListValue(&structpb.ListValue{Values: cells})
		}
		fields["rows"] = structpb.NewListValue(&structpb.ListValue{Values: rows})
	}

	return &structpb.Struct{Fields: fields}, nil
}

func valueToProto(v types.Value) *structpb.Value {
	if n, ok := v.AsInt(); ok {
		return structpb.NewNumberValue(float64(n))
	}
	if s, ok := v.AsText(); ok {
		return structpb.NewStringValue(s)
	}
	return structpb.NewNullValue()
}

// StatusCode maps an engine error category onto a gRPC code.
func StatusCode(err error) codes.Code {
	switch errors.GetCategory(err) {
	case errors.ErrCategorySchema, errors.ErrCategoryType, errors.ErrCategoryStatement:
		return codes.InvalidArgument
	case errors.ErrCategoryNotFound:
		return codes.NotFound
	case errors.ErrCategoryConstraint:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// toStatus converts err into a status carrying an ErrorInfo with the
// error code as reason and the category in metadata.
func toStatus(err error) error {
	st := status.New(StatusCode(err), errors.Message(err))
	code := errors.GetCode(err)
	if code == "" {
		return st.Err()
	}
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   code,
		Domain:   errorDomain,
		Metadata: map[string]string{"category": string(errors.GetCategory(err))},
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorCode extracts the engine error code from a status returned by Execute.
func ErrorCode(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info.GetReason()
		}
	}
	return ""
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id set by RequestIDInterceptor.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return extractRequestID(ctx)
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDHeader); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}

// RequestIDInterceptor assigns a request id, echoes it in the response
// header and logs the call.
func RequestIDInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	requestID := extractRequestID(ctx)
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

	start := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("gRPC request: request_id=%s method=%s code=%s duration=%v",
		requestID, info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}

// Client is a thin client for StatementService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Execute sends one statement.
func (c *Client) Execute(ctx context.Context, stmt string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteMethod, wrapperspb.String(stmt), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
