package handler

import (
	"context"
	"errors"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/core/service"
)

const (
	ScanServiceName         = "shirttrack.v1.ScanService"
	ScanServiceScanMethod   = "/" + ScanServiceName + "/Scan"
	ScanServiceLookupMethod = "/" + ScanServiceName + "/Lookup"
)

// ScanServiceServer carries scans over gRPC. Requests and replies are
// google.protobuf.Struct so no generated code is needed.
type ScanServiceServer interface {
	Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Lookup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: ScanServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: scanMethodHandler},
		{MethodName: "Lookup", Handler: lookupMethodHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shirttrack/v1/scan.proto",
}

func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

func scanMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServiceServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScanServiceScanMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServiceServer).Scan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func lookupMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServiceServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScanServiceLookupMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServiceServer).Lookup(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	scans   *service.ScanService
	metrics *Metrics
}

var _ ScanServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(scans *service.ScanService, metrics *Metrics) *GRPCHandler {
	return &GRPCHandler{scans: scans, metrics: metrics}
}

func (h *GRPCHandler) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	action := stringField(req, "action")
	serial := stringField(req, "serial")
	if action == "" || serial == "" {
		return nil, status.Error(codes.InvalidArgument, "action and serial are required")
	}

	shirt, err := h.scans.Scan(ctx, service.ScanRequest{
		Action:     action,
		Serial:     serial,
		ShipmentID: stringField(req, "shipment_id"),
		RequestID:  stringField(req, "request_id"),
	})
	if err != nil {
		h.metrics.ObserveScan(action, scanOutcome(err))
		return nil, grpcError(err)
	}

	h.metrics.ObserveScan(action, "ok")
	return shirtStruct(shirt)
}

func (h *GRPCHandler) Lookup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	serial := stringField(req, "serial")
	if serial == "" {
		return nil, status.Error(codes.InvalidArgument, "serial is required")
	}

	shirt, err := h.scans.Lookup(ctx, serial)
	if err != nil {
		return nil, grpcError(err)
	}
	return shirtStruct(shirt)
}

func stringField(s *structpb.Struct, name string) string {
	return strings.TrimSpace(s.GetFields()[name].GetStringValue())
}

func shirtStruct(s *domain.Shirt) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":            s.ID,
		"serial_number": s.SerialNumber,
		"color":         s.Color,
		"size":          string(s.Size),
		"type":          string(s.Type),
		"status":        string(s.Status),
		"shipment_id":   nil,
	}
	if s.ShipmentID != nil {
		fields["shipment_id"] = *s.ShipmentID
	}
	if s.Shipment != nil {
		fields["shipment"] = map[string]any{
			"id":            s.Shipment.ID,
			"tracking_code": s.Shipment.TrackingCode,
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode shirt: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	_, message := errorStatus(err)
	switch {
	case errors.Is(err, domain.ErrShirtNotFound), errors.Is(err, domain.ErrShipmentNotFound):
		return status.Error(codes.NotFound, message)
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrShipmentIDRequired),
		errors.Is(err, domain.ErrUnknownAction):
		return status.Error(codes.InvalidArgument, message)
	case errors.Is(err, service.ErrDuplicateScan):
		return status.Error(codes.AlreadyExists, message)
	case errors.Is(err, domain.ErrActionNotImplemented):
		return status.Error(codes.Unimplemented, message)
	}

	log.Printf("grpc: internal error: %v", err)
	return status.Error(codes.Internal, "internal error")
}
