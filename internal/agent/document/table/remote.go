package table

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

const extractMethod = "/tapu.tables.v1.TableExtractor/Extract"

// Extractor finds the table regions of a PDF. Failures are logged and
// reported as an empty result.
type Extractor interface {
	Extract(ctx context.Context, path string) []models.TableGrid
}

// RemoteExtractor calls a lattice table-extraction service over gRPC.
type RemoteExtractor struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  logger.Logger
}

func NewRemoteExtractor(address string, timeout time.Duration, log logger.Logger, opts ...grpc.DialOption) (*RemoteExtractor, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to table extractor: %w", err)
	}

	return &RemoteExtractor{
		conn:    conn,
		timeout: timeout,
		logger:  log.Named("tables"),
	}, nil
}

func (e *RemoteExtractor) Extract(ctx context.Context, path string) []models.TableGrid {
	tables, err := e.extract(ctx, path)
	if err != nil {
		e.logger.Error("Failed to extract tables",
			logger.String("file", filepath.Base(path)),
			logger.Error(err),
		)
		return nil
	}

	e.logger.Info("Extracted tables",
		logger.String("file", filepath.Base(path)),
		logger.Int("tables", len(tables)),
	)
	return tables
}

func (e *RemoteExtractor) extract(ctx context.Context, path string) ([]models.TableGrid, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"filename": filepath.Base(path),
		"document": base64.StdEncoding.EncodeToString(content),
		"flavor":   "lattice",
		"pages":    "all",
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, extractMethod, req, resp); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	return decodeTables(resp)
}

// decodeTables reads {"tables": [[[cell, ...], ...], ...]}.
func decodeTables(resp *structpb.Struct) ([]models.TableGrid, error) {
	field, ok := resp.GetFields()["tables"]
	if !ok {
		return nil, nil
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("tables: expected list, got %T", field.GetKind())
	}

	tables := make([]models.TableGrid, 0, len(list.GetValues()))
	for ti, tv := range list.GetValues() {
		rows := tv.GetListValue()
		if rows == nil {
			return nil, fmt.Errorf("table %d: expected list of rows", ti)
		}
		grid := make(models.TableGrid, 0, len(rows.GetValues()))
		for ri, rv := range rows.GetValues() {
			cells := rv.GetListValue()
			if cells == nil {
				return nil, fmt.Errorf("table %d row %d: expected list of cells", ti, ri)
			}
			row := make([]string, len(cells.GetValues()))
			for ci, cv := range cells.GetValues() {
				row[ci] = cellText(cv)
			}
			grid = append(grid, row)
		}
		tables = append(tables, grid)
	}
	return tables, nil
}

func cellText(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}

func (e *RemoteExtractor) Close() error {
	return e.conn.Close()
}
