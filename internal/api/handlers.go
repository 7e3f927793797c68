package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "logrca.v1.AnalysisService"

const maxRecordsPerRequest = 100000

// AnalysisService is the behaviour exposed over gRPC and REST.
type AnalysisService interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error)
	Investigate(ctx context.Context, req models.InvestigationRequest) (models.AnalysisResult, error)
	ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error)
	GetRun(ctx context.Context, req models.GetRunRequest) (models.AnalysisResult, error)
	Health(ctx context.Context) models.HealthReport
}

// ServiceDesc describes the analysis service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalysisService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
		{MethodName: "Investigate", Handler: investigateHandler},
		{MethodName: "ListRuns", Handler: listRunsHandler},
		{MethodName: "GetRun", Handler: getRunHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "logrca/v1/analysis.json",
}

// RegisterAnalysisServer attaches svc to the registrar.
func RegisterAnalysisServer(s grpc.ServiceRegistrar, svc AnalysisService) {
	s.RegisterService(&ServiceDesc, svc)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.AnalyzeRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*models.AnalyzeRequest)
		if err := ValidateAnalyzeRequest(*r); err != nil {
			return nil, ToStatus(err)
		}
		res, err := srv.(AnalysisService).Analyze(ctx, *r)
		if err != nil {
			return nil, ToStatus(err)
		}
		return &res, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Analyze")}, call)
}

func investigateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.InvestigationRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*models.InvestigationRequest)
		if err := ValidateInvestigationRequest(*r); err != nil {
			return nil, ToStatus(err)
		}
		res, err := srv.(AnalysisService).Investigate(ctx, *r)
		if err != nil {
			return nil, ToStatus(err)
		}
		return &res, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Investigate")}, call)
}

func listRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.ListRunsRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	call := func(ctx context.Context, req any) (any, error) {
		res, err := srv.(AnalysisService).ListRuns(ctx, *req.(*models.ListRunsRequest))
		if err != nil {
			return nil, ToStatus(err)
		}
		return &res, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ListRuns")}, call)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.GetRunRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	call := func(ctx context.Context, req any) (any, error) {
		res, err := srv.(AnalysisService).GetRun(ctx, *req.(*models.GetRunRequest))
		if err != nil {
			return nil, ToStatus(err)
		}
		return &res, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetRun")}, call)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.HealthRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	call := func(ctx context.Context, _ any) (any, error) {
		report := srv.(AnalysisService).Health(ctx)
		return &report, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Health")}, call)
}

// ValidateAnalyzeRequest bounds the batch size.
func ValidateAnalyzeRequest(req models.AnalyzeRequest) error {
	if len(req.Records) > maxRecordsPerRequest {
		return utils.InvalidRequest("api.Analyze", fmt.Sprintf("at most %d records per request", maxRecordsPerRequest))
	}
	return nil
}

// ValidateInvestigationRequest checks the window and limits of an investigation.
func ValidateInvestigationRequest(req models.InvestigationRequest) error {
	start, end := req.TimeRange.Start, req.TimeRange.End
	if start.IsZero() != end.IsZero() {
		return utils.InvalidRequest("api.Investigate", "time_range.start and time_range.end must be set together")
	}
	if !start.IsZero() && !end.After(start) {
		return utils.InvalidRequest("api.Investigate", "time_range.end must be after time_range.start")
	}
	if req.Hours < 0 || req.MaxLogs < 0 {
		return utils.InvalidRequest("api.Investigate", "hours and max_logs must not be negative")
	}
	return nil
}

// ToStatus maps domain errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeFor(err), err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, utils.ErrInvalidRequest):
		return codes.InvalidArgument
	case errors.Is(err, utils.ErrRunNotFound):
		return codes.NotFound
	case errors.Is(err, utils.ErrNotConfigured), errors.Is(err, utils.ErrNoAdvisor):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// httpStatusFor maps domain errors onto HTTP status codes.
func httpStatusFor(err error) int {
	switch codeFor(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Canceled:
		return 499
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
