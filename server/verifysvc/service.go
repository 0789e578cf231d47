// Package verifysvc exposes the core verifier as a Connect/gRPC service,
// the way server/eval_service.go exposes the VM's evaluation surface:
// one small handler type per RPC, constructed with the collaborators it
// needs and registered on a shared mux. Adapted to the verifier domain's
// request/response shape (method identity, decoded bytecode, the
// diagnostics the worklist produced) instead of the VM's compile/execute
// surface, and over a JSON codec (see codec.go) rather than generated
// protobuf stubs.
package verifysvc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/cilverify/pkg/config"
	"github.com/chazu/cilverify/pkg/diag"
	"github.com/chazu/cilverify/pkg/interp"
	"github.com/chazu/cilverify/pkg/methodsrc"
	"github.com/chazu/cilverify/pkg/oracle"
)

const verifyProcedure = "/cilverify.v1.VerifyService/Verify"

// VerifyRequest is the wire shape of one verification call: a method
// body envelope plus the reporter mode to use for this call (falling
// back to the server's configured default when empty).
type VerifyRequest struct {
	Envelope     methodsrc.Envelope `json:"envelope"`
	ReporterMode string             `json:"reporter_mode,omitempty"`
}

// VerifyDiagnostic is one reported verifier error, flattened for the wire.
type VerifyDiagnostic struct {
	Kind   string `json:"kind"`
	Offset int    `json:"offset"`
	Detail string `json:"detail"`
}

// VerifyResponse reports whether the method body passed verification and,
// if not, every diagnostic the reporter collected.
type VerifyResponse struct {
	Verified    bool               `json:"verified"`
	Diagnostics []VerifyDiagnostic `json:"diagnostics,omitempty"`
}

// Service implements the Verify RPC over the core interp.Verify entry
// point. It holds no per-call state: ts and resolver are long-lived
// collaborators, and the worklist itself is never retained across calls.
type Service struct {
	ts       oracle.TypeSystem
	resolver oracle.TokenResolver
	policy   *config.Policy
	ledger   *Ledger // optional; nil disables result persistence
}

// NewService builds a Service over its required collaborators. ledger
// may be nil.
func NewService(ts oracle.TypeSystem, resolver oracle.TokenResolver, policy *config.Policy, ledger *Ledger) *Service {
	return &Service{ts: ts, resolver: resolver, policy: policy, ledger: ledger}
}

// Verify decodes the request envelope, runs the core verifier, and
// reports the outcome.
func (s *Service) Verify(ctx context.Context, req *connect.Request[VerifyRequest]) (*connect.Response[VerifyResponse], error) {
	body, err := methodsrc.ToBody(&req.Msg.Envelope, envelopeResolver{s.resolver})
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	policy := diag.FailFast
	if s.policy != nil {
		policy = s.policy.ReporterPolicy()
	}
	switch req.Msg.ReporterMode {
	case "":
	case "fail-fast":
		policy = diag.FailFast
	case "collect-all":
		policy = diag.CollectAll
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown reporter_mode %q", req.Msg.ReporterMode))
	}

	reporter := diag.NewReporter(policy)
	interp.Verify(s.ts, s.resolver, body, reporter)

	resp := &VerifyResponse{Verified: !reporter.Failed()}
	for _, e := range reporter.Errors() {
		resp.Diagnostics = append(resp.Diagnostics, VerifyDiagnostic{
			Kind:   e.Kind.String(),
			Offset: e.Offset,
			Detail: e.Error(),
		})
	}

	if s.ledger != nil {
		_ = s.ledger.Record(ctx, fmt.Sprintf("%v", body.Method), resp.Verified, firstDetail(resp.Diagnostics), time.Now())
	}

	return connect.NewResponse(resp), nil
}

func firstDetail(ds []VerifyDiagnostic) string {
	if len(ds) == 0 {
		return ""
	}
	return ds[0].Detail
}

// envelopeResolver adapts an oracle.TokenResolver (Method/Type/Field) to
// the narrower methodsrc.Resolver the envelope decode needs.
type envelopeResolver struct {
	r oracle.TokenResolver
}

func (e envelopeResolver) ResolveType(token uint32) (oracle.TypeID, error) {
	return e.r.ResolveType(token)
}

func (e envelopeResolver) ResolveMethod(token uint32) (oracle.MethodID, error) {
	return e.r.ResolveMethod(token)
}

// NewMux builds the HTTP mux serving svc's Verify RPC over the JSON
// codec, at verifyProcedure.
func NewMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()
	handler := connect.NewUnaryHandler(
		verifyProcedure,
		svc.Verify,
		connect.WithCodec(jsonCodec{}),
	)
	mux.Handle(verifyProcedure, handler)
	return mux
}

// ListenAndServe starts the HTTP server on addr, mirroring
// server.MaggieServer.ListenAndServe's startup logging.
func ListenAndServe(addr string, svc *Service) error {
	fmt.Printf("cilverify verification service listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, verifyProcedure)
	return http.ListenAndServe(addr, NewMux(svc))
}
