package verifysvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/dynamic/grpcdynamic"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// OracleClient reaches an external type-system/metadata backend over
// plain gRPC server reflection: resolve the method via grpcreflect, build
// a dynamic request message, invoke, and hand back the dynamic response.
// There is no generated oracle.proto client here (no protoc stub
// generation is available in this environment), so calls to an external
// oracle backend go through this reflective path rather than a typed
// client.
type OracleClient struct {
	addr string
	conn *grpc.ClientConn
}

// DialOracleClient opens a plaintext gRPC connection to addr. Verifying
// process-local code never needs this; it exists for the case where the
// oracle.TypeSystem/TokenResolver a Service is built with is itself
// backed by a remote metadata service.
func DialOracleClient(addr string) (*OracleClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("verifysvc: dial oracle backend %s: %w", addr, err)
	}
	return &OracleClient{addr: addr, conn: conn}, nil
}

// Close releases the underlying connection.
func (c *OracleClient) Close() error {
	return c.conn.Close()
}

// ListServices enumerates the services the remote backend exposes via
// reflection, mainly useful for diagnostics.
func (c *OracleClient) ListServices(ctx context.Context) ([]string, error) {
	refClient := grpcreflect.NewClientAuto(ctx, c.conn)
	defer refClient.Reset()

	services, err := refClient.ListServices()
	if err != nil {
		return nil, fmt.Errorf("verifysvc: list services on %s: %w", c.addr, err)
	}
	return services, nil
}

// CallJSON invokes "service/method" on the remote backend, passing
// jsonPayload as the request body and returning the response as JSON.
// method must be of the form "fully.qualified.Service/MethodName".
func (c *OracleClient) CallJSON(ctx context.Context, method string, jsonPayload []byte) ([]byte, error) {
	parts := strings.SplitN(method, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("verifysvc: invalid method %q, expected service/method", method)
	}
	serviceName, methodName := parts[0], parts[1]

	refClient := grpcreflect.NewClientAuto(ctx, c.conn)
	defer refClient.Reset()

	svcDesc, err := refClient.ResolveService(serviceName)
	if err != nil {
		return nil, fmt.Errorf("verifysvc: resolve service %s: %w", serviceName, err)
	}
	mtdDesc := svcDesc.FindMethodByName(methodName)
	if mtdDesc == nil {
		return nil, fmt.Errorf("verifysvc: method %s not found in service %s", methodName, serviceName)
	}

	reqMsg := dynamic.NewMessage(mtdDesc.GetInputType())
	if err := reqMsg.UnmarshalJSON(jsonPayload); err != nil {
		return nil, fmt.Errorf("verifysvc: parse request JSON for %s: %w", method, err)
	}

	stub := grpcdynamic.NewStub(c.conn)
	respMsg, err := stub.InvokeRpc(ctx, mtdDesc, reqMsg)
	if err != nil {
		return nil, fmt.Errorf("verifysvc: invoke %s: %w", method, err)
	}

	dynResp, ok := respMsg.(*dynamic.Message)
	if !ok {
		return nil, fmt.Errorf("verifysvc: unexpected response type for %s", method)
	}
	out, err := dynResp.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("verifysvc: marshal response for %s: %w", method, err)
	}
	return out, nil
}
