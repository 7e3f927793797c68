package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

// Client calls a remote analysis service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without transport security. Extra options are appended.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Analyze sends caller-supplied records for analysis.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	err := c.conn.Invoke(ctx, fullMethod("Analyze"), &req, &out)
	return out, err
}

// Investigate asks the server to fetch and analyse a log window.
func (c *Client) Investigate(ctx context.Context, req models.InvestigationRequest) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	err := c.conn.Invoke(ctx, fullMethod("Investigate"), &req, &out)
	return out, err
}

// ListRuns lists stored runs.
func (c *Client) ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	var out models.ListRunsResponse
	err := c.conn.Invoke(ctx, fullMethod("ListRuns"), &req, &out)
	return out, err
}

// GetRun fetches one stored run.
func (c *Client) GetRun(ctx context.Context, req models.GetRunRequest) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	err := c.conn.Invoke(ctx, fullMethod("GetRun"), &req, &out)
	return out, err
}

// Health returns the remote component report.
func (c *Client) Health(ctx context.Context) (models.HealthReport, error) {
	var out models.HealthReport
	err := c.conn.Invoke(ctx, fullMethod("Health"), &models.HealthRequest{}, &out)
	return out, err
}
