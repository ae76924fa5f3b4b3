package grpc

import (
	"context"
	"strings"

	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Dial opens a lazy connection to the order service.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

// OrderClient implements ledger.Ledger against a remote order service. Status
// codes are mapped back to the ledger errors so callers handle local and
// remote ledgers alike.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

var _ ledger.Ledger = (*OrderClient)(nil)

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

func (c *OrderClient) invoke(ctx context.Context, method string, req, reply any) error {
	if err := c.cc.Invoke(ctx, fullMethod(method), req, reply, grpc.CallContentSubtype(codecName)); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *OrderClient) Create(ctx context.Context, userID string, items []models.OrderItem, total float64) (*models.Order, error) {
	var reply OrderReply
	if err := c.invoke(ctx, methodCreate, &CreateRequest{UserID: userID, Items: items, Total: total}, &reply); err != nil {
		return nil, err
	}
	return reply.Order, nil
}

func (c *OrderClient) ListForUser(ctx context.Context, userID string) ([]*models.Order, error) {
	var reply OrdersReply
	if err := c.invoke(ctx, methodListForUser, &UserRequest{UserID: userID}, &reply); err != nil {
		return nil, err
	}
	if reply.Orders == nil {
		return []*models.Order{}, nil
	}
	return reply.Orders, nil
}

func (c *OrderClient) Current(ctx context.Context, userID string) (*models.Order, error) {
	var reply OrderReply
	if err := c.invoke(ctx, methodCurrent, &UserRequest{UserID: userID}, &reply); err != nil {
		return nil, err
	}
	return reply.Order, nil
}

func (c *OrderClient) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var reply OrderReply
	if err := c.invoke(ctx, methodGet, &OrderRequest{OrderID: orderID}, &reply); err != nil {
		return nil, err
	}
	return reply.Order, nil
}

func (c *OrderClient) Update(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	var reply OrderReply
	if err := c.invoke(ctx, methodUpdate, &UpdateRequest{OrderID: orderID, Items: items, Total: total}, &reply); err != nil {
		return nil, err
	}
	return reply.Order, nil
}

func (c *OrderClient) Delete(ctx context.Context, orderID string) error {
	return c.invoke(ctx, methodDelete, &OrderRequest{OrderID: orderID}, &Empty{})
}

func (c *OrderClient) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	var reply OrderReply
	if err := c.invoke(ctx, methodMarkDelivered, &OrderRequest{OrderID: orderID}, &reply); err != nil {
		return nil, err
	}
	return reply.Order, nil
}

// remoteError keeps the server's message while matching a ledger sentinel.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = ledger.ErrInvalidOrder
		if strings.Contains(st.Message(), ledger.ErrInvalidOrderID.Error()) {
			sentinel = ledger.ErrInvalidOrderID
		}
	case codes.NotFound:
		sentinel = ledger.ErrOrderNotFound
	case codes.FailedPrecondition:
		sentinel = ledger.ErrOrderDelivered
	default:
		return err
	}
	return &remoteError{sentinel: sentinel, msg: st.Message()}
}
