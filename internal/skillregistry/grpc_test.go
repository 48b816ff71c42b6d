package skillregistry

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeSkillService backs the two RPCs RemoteRegistry calls, registered
// against a raw grpc.ServiceDesc so the test exercises the same
// structpb.Struct-over-Invoke path as the real server would, without
// needing generated stubs on either side.
type fakeSkillService struct {
	known map[string]bool
	args  map[string][]string // skill name -> required argument keys
}

func (f *fakeSkillService) has(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.Fields["name"].GetStringValue()
	return structpb.NewStruct(map[string]any{"present": f.known[name]})
}

func (f *fakeSkillService) validateArguments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.Fields["name"].GetStringValue()
	argStruct := req.Fields["arguments"].GetStructValue()
	required, ok := f.args[name]
	if !ok {
		return structpb.NewStruct(map[string]any{"valid": false})
	}
	for _, key := range required {
		if _, present := argStruct.GetFields()[key]; !present {
			return structpb.NewStruct(map[string]any{"valid": false})
		}
	}
	return structpb.NewStruct(map[string]any{"valid": true})
}

var fakeSkillServiceDesc = grpc.ServiceDesc{
	ServiceName: "guardproxy.skills.v1.SkillService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Has",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				req := &structpb.Struct{}
				if err := dec(req); err != nil {
					return nil, err
				}
				return srv.(*fakeSkillService).has(ctx, req)
			},
		},
		{
			MethodName: "ValidateArguments",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				req := &structpb.Struct{}
				if err := dec(req); err != nil {
					return nil, err
				}
				return srv.(*fakeSkillService).validateArguments(ctx, req)
			},
		},
	},
}

func startFakeServer(t *testing.T, svc *fakeSkillService) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer()
	srv.RegisterService(&fakeSkillServiceDesc, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestRemoteRegistry_Has(t *testing.T) {
	addr := startFakeServer(t, &fakeSkillService{known: map[string]bool{"get_weather": true}})

	reg, err := DialRemoteRegistry(addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer reg.Close()

	if !reg.Has("get_weather") {
		t.Errorf("expected get_weather to be present")
	}
	if reg.Has("evil_shell") {
		t.Errorf("expected evil_shell to be absent")
	}
}

func TestRemoteRegistry_ValidateArguments(t *testing.T) {
	addr := startFakeServer(t, &fakeSkillService{
		known: map[string]bool{"get_weather": true},
		args:  map[string][]string{"get_weather": {"city"}},
	})

	reg, err := DialRemoteRegistry(addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer reg.Close()

	if !reg.ValidateArguments("get_weather", map[string]any{"city": "nyc"}) {
		t.Errorf("expected arguments with city to validate")
	}
	if reg.ValidateArguments("get_weather", map[string]any{}) {
		t.Errorf("expected missing required argument to fail validation")
	}
	if reg.ValidateArguments("unknown_skill", map[string]any{}) {
		t.Errorf("expected an unknown skill to fail validation")
	}
}

func TestRemoteRegistry_UnreachableFailsClosed(t *testing.T) {
	reg, err := DialRemoteRegistry("127.0.0.1:1", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("dial (lazy, should not error until first call): %v", err)
	}
	defer reg.Close()

	if reg.Has("anything") {
		t.Errorf("expected Has to fail closed against an unreachable server")
	}
}
