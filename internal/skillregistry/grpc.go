package skillregistry

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// These two full method paths are the remote skill service's contract.
// RemoteRegistry calls them with grpc.ClientConn.Invoke directly against
// structpb.Struct messages rather than generated stubs, so that a deployer
// can point this at any service speaking the same two RPCs without this
// repo vendoring protoc output for it.
const (
	hasMethod               = "/guardproxy.skills.v1.SkillService/Has"
	validateArgumentsMethod = "/guardproxy.skills.v1.SkillService/ValidateArguments"
)

// RemoteRegistry delegates Has/ValidateArguments to a remote gRPC skill
// service, for deployments where the skill catalog lives outside this
// process. Grounded on the teacher's internal/filter/pii.Client, which
// wraps a generated stub the same way; this package avoids fabricating a
// generated stub by speaking structpb.Struct over ClientConn.Invoke.
type RemoteRegistry struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// DialRemoteRegistry opens the gRPC connection to addr.
func DialRemoteRegistry(addr string, timeout time.Duration) (*RemoteRegistry, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("skill registry dial %s: %w", addr, err)
	}
	return &RemoteRegistry{conn: conn, timeout: timeout}, nil
}

// Close closes the underlying gRPC connection.
func (r *RemoteRegistry) Close() error {
	return r.conn.Close()
}

func (r *RemoteRegistry) Has(name string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{"name": name})
	if err != nil {
		return false
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, hasMethod, req, resp); err != nil {
		return false
	}
	present, ok := resp.Fields["present"]
	return ok && present.GetBoolValue()
}

func (r *RemoteRegistry) ValidateArguments(name string, args map[string]any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	argStruct, err := structpb.NewStruct(args)
	if err != nil {
		return false
	}
	req, err := structpb.NewStruct(map[string]any{"name": name})
	if err != nil {
		return false
	}
	req.Fields["arguments"] = structpb.NewStructValue(argStruct)

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, validateArgumentsMethod, req, resp); err != nil {
		return false
	}
	valid, ok := resp.Fields["valid"]
	return ok && valid.GetBoolValue()
}
