package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/server"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(RequestIDInterceptor))
	Register(s, NewServer(server.NewSerializer(engine.New())))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestStatementService_Execute(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	out, err := c.Execute(ctx, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, email TEXT UNIQUE)")
	require.NoError(t, err)
	assert.Equal(t, "none", out.Fields["kind"].GetStringValue())

	out, err = c.Execute(ctx, "INSERT INTO users (id, name) VALUES (1, 'Ann')")
	require.NoError(t, err)
	assert.Equal(t, "row_id", out.Fields["kind"].GetStringValue())
	assert.Equal(t, float64(1), out.Fields["row_id"].GetNumberValue())

	var header metadata.MD
	out, err = c.Execute(ctx, "SELECT id, name, email FROM users", grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(requestIDHeader))
	assert.Equal(t, header.Get(requestIDHeader)[0], out.Fields["request_id"].GetStringValue())

	m := out.AsMap()
	assert.Equal(t, "rows", m["kind"])
	assert.Equal(t, []interface{}{"id", "name", "email"}, m["columns"])
	assert.Equal(t, []interface{}{[]interface{}{float64(1), "Ann", nil}}, m["rows"])

	out, err = c.Execute(ctx, "UPDATE users SET name = 'Anne' WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Fields["affected"].GetNumberValue())
}

func TestStatementService_RequestIDPropagates(t *testing.T) {
	c := newTestClient(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "req-42")

	out, err := c.Execute(ctx, "CREATE TABLE t (id INT)")
	require.NoError(t, err)
	assert.Equal(t, "req-42", out.Fields["request_id"].GetStringValue())
}

func TestStatementService_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	_, err := c.Execute(ctx, "CREATE TABLE users (id INT PRIMARY KEY)")
	require.NoError(t, err)
	_, err = c.Execute(ctx, "INSERT INTO users (id) VALUES (1)")
	require.NoError(t, err)

	tests := []struct {
		stmt string
		code codes.Code
		ec   string
	}{
		{"", codes.InvalidArgument, ""},
		{"SELEC 1", codes.InvalidArgument, "SYNTAX_ERROR"},
		{"SELECT * FROM ghosts", codes.NotFound, "TABLE_NOT_FOUND"},
		{"INSERT INTO users (id) VALUES (1)", codes.AlreadyExists, "CONSTRAINT_VIOLATION"},
		{"INSERT INTO users (id) VALUES ('x')", codes.InvalidArgument, "TYPE_MISMATCH"},
		{"CREATE TABLE users (id INT)", codes.InvalidArgument, "TABLE_EXISTS"},
	}
	for _, tt := range tests {
		_, err := c.Execute(ctx, tt.stmt)
		require.Error(t, err, tt.stmt)
		assert.Equal(t, tt.code, status.Code(err), tt.stmt)
		assert.Equal(t, tt.ec, ErrorCode(err), tt.stmt)
	}
}

func TestShutdownInterceptorChain(t *testing.T) {
	sm := server.NewShutdownManager(0)
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(RequestIDInterceptor, server.UnaryShutdownInterceptor(sm)))
	Register(s, NewServer(server.NewSerializer(engine.New())))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	_, err = NewClient(conn).Execute(context.Background(), "CREATE TABLE t (id INT)")
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
