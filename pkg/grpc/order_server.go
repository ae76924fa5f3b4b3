package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/example/khanpan/pkg/ledger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// OrderLedgerServer is the method set behind the khanpan.OrderLedger service.
type OrderLedgerServer interface {
	Create(context.Context, *CreateRequest) (*OrderReply, error)
	ListForUser(context.Context, *UserRequest) (*OrdersReply, error)
	Current(context.Context, *UserRequest) (*OrderReply, error)
	Get(context.Context, *OrderRequest) (*OrderReply, error)
	Update(context.Context, *UpdateRequest) (*OrderReply, error)
	Delete(context.Context, *OrderRequest) (*Empty, error)
	MarkDelivered(context.Context, *OrderRequest) (*OrderReply, error)
}

var orderLedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodCreate, OrderLedgerServer.Create),
		unary(methodListForUser, OrderLedgerServer.ListForUser),
		unary(methodCurrent, OrderLedgerServer.Current),
		unary(methodGet, OrderLedgerServer.Get),
		unary(methodUpdate, OrderLedgerServer.Update),
		unary(methodDelete, OrderLedgerServer.Delete),
		unary(methodMarkDelivered, OrderLedgerServer.MarkDelivered),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "khanpan/order_ledger",
}

func unary[Req, Resp any](method string, call func(OrderLedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(OrderLedgerServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// RegisterOrderLedgerServer attaches impl to s.
func RegisterOrderLedgerServer(s grpc.ServiceRegistrar, impl OrderLedgerServer) {
	s.RegisterService(&orderLedgerServiceDesc, impl)
}

// OrderServer exposes a ledger over gRPC.
type OrderServer struct {
	ledger ledger.Ledger
	logger *zap.Logger
	server *grpc.Server
	health *health.Server
}

var _ OrderLedgerServer = (*OrderServer)(nil)

func NewOrderServer(l ledger.Ledger, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		ledger: l,
		logger: logger.Named("order-server"),
		health: health.NewServer(),
	}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	RegisterOrderLedgerServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Order service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *OrderServer) Create(ctx context.Context, req *CreateRequest) (*OrderReply, error) {
	order, err := s.ledger.Create(ctx, req.UserID, req.Items, req.Total)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: order}, nil
}

func (s *OrderServer) ListForUser(ctx context.Context, req *UserRequest) (*OrdersReply, error) {
	orders, err := s.ledger.ListForUser(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrdersReply{Orders: orders}, nil
}

func (s *OrderServer) Current(ctx context.Context, req *UserRequest) (*OrderReply, error) {
	order, err := s.ledger.Current(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: order}, nil
}

func (s *OrderServer) Get(ctx context.Context, req *OrderRequest) (*OrderReply, error) {
	order, err := s.ledger.Get(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: order}, nil
}

func (s *OrderServer) Update(ctx context.Context, req *UpdateRequest) (*OrderReply, error) {
	order, err := s.ledger.Update(ctx, req.OrderID, req.Items, req.Total)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: order}, nil
}

func (s *OrderServer) Delete(ctx context.Context, req *OrderRequest) (*Empty, error) {
	if err := s.ledger.Delete(ctx, req.OrderID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *OrderServer) MarkDelivered(ctx context.Context, req *OrderRequest) (*OrderReply, error) {
	order, err := s.ledger.MarkDelivered(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderReply{Order: order}, nil
}

func (s *OrderServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("took", time.Since(start)),
	}
	if code := status.Code(err); code == codes.Internal || code == codes.Unknown {
		s.logger.Error("Request failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("Request handled", append(fields, zap.String("code", code.String()))...)
	}
	return resp, err
}

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{ledger.ErrInvalidOrder, codes.InvalidArgument},
	{ledger.ErrInvalidOrderID, codes.InvalidArgument},
	{ledger.ErrOrderNotFound, codes.NotFound},
	{ledger.ErrOrderDelivered, codes.FailedPrecondition},
}

func toStatus(err error) error {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return status.Error(ec.code, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}
