package table

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

// startExtractor serves every method with handle on an in-memory listener.
func startExtractor(t *testing.T, handle func(req *structpb.Struct) (*structpb.Struct, error)) *RemoteExtractor {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ interface{}, stream grpc.ServerStream) error {
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		resp, err := handle(req)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	e, err := NewRemoteExtractor("passthrough:///bufnet", time.Second, logger.NewNop(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tapu.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func TestRemoteExtractor_Extract(t *testing.T) {
	var got *structpb.Struct
	e := startExtractor(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		got = req
		return structpb.NewStruct(map[string]interface{}{
			"tables": []interface{}{
				[]interface{}{
					[]interface{}{"Kimlik No", "12"},
					[]interface{}{"Ada/Parsel", 101.0},
				},
				[]interface{}{},
			},
		})
	})

	tables := e.Extract(context.Background(), writePDF(t))

	require.Len(t, tables, 2)
	assert.Equal(t, models.TableGrid{{"Kimlik No", "12"}, {"Ada/Parsel", "101"}}, tables[0])
	assert.Empty(t, tables[1])

	require.NotNil(t, got)
	assert.Equal(t, "tapu.pdf", got.GetFields()["filename"].GetStringValue())
	assert.Equal(t, "lattice", got.GetFields()["flavor"].GetStringValue())
	assert.Equal(t, "all", got.GetFields()["pages"].GetStringValue())
	assert.NotEmpty(t, got.GetFields()["document"].GetStringValue())
}

func TestRemoteExtractor_FailureIsEmpty(t *testing.T) {
	e := startExtractor(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Internal, "ghostscript missing")
	})

	assert.Empty(t, e.Extract(context.Background(), writePDF(t)))
}

func TestRemoteExtractor_MissingFileIsEmpty(t *testing.T) {
	e := startExtractor(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	})

	assert.Empty(t, e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")))
}

func TestDecodeTables_RejectsMalformed(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{"tables": "nope"})
	require.NoError(t, err)

	_, err = decodeTables(resp)
	assert.Error(t, err)
}
