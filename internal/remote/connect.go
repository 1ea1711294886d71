// Package remote defines the Connect services of the remote snapshot store
// and a client that the sync engine uses to reach them.
package remote

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	SnapshotServiceName = "ledgersync.v1.SnapshotService"
	AuthServiceName     = "ledgersync.v1.AuthService"
)

const (
	SnapshotServiceGetSnapshotProcedure = "/ledgersync.v1.SnapshotService/GetSnapshot"
	SnapshotServicePutSnapshotProcedure = "/ledgersync.v1.SnapshotService/PutSnapshot"
	AuthServiceRegisterProcedure        = "/ledgersync.v1.AuthService/Register"
	AuthServiceLoginProcedure           = "/ledgersync.v1.AuthService/Login"
)

// HealthPath answers 200 while the server is up.
const HealthPath = "/healthz"

// HealthHandler serves HealthPath.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// SnapshotServiceHandler serves the per-owner snapshot records.
type SnapshotServiceHandler interface {
	GetSnapshot(context.Context, *connect.Request[GetSnapshotRequest]) (*connect.Response[GetSnapshotResponse], error)
	PutSnapshot(context.Context, *connect.Request[PutSnapshotRequest]) (*connect.Response[PutSnapshotResponse], error)
}

// AuthServiceHandler registers owners and issues tokens.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}

func route(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// NewSnapshotServiceHandler returns the mount path and handler of svc.
func NewSnapshotServiceHandler(svc SnapshotServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + SnapshotServiceName + "/", route(map[string]http.Handler{
		SnapshotServiceGetSnapshotProcedure: connect.NewUnaryHandler(SnapshotServiceGetSnapshotProcedure, svc.GetSnapshot, opts...),
		SnapshotServicePutSnapshotProcedure: connect.NewUnaryHandler(SnapshotServicePutSnapshotProcedure, svc.PutSnapshot, opts...),
	})
}

// NewAuthServiceHandler returns the mount path and handler of svc.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + AuthServiceName + "/", route(map[string]http.Handler{
		AuthServiceRegisterProcedure: connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...),
		AuthServiceLoginProcedure:    connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...),
	})
}

// SnapshotServiceClient calls SnapshotService.
type SnapshotServiceClient struct {
	getSnapshot *connect.Client[GetSnapshotRequest, GetSnapshotResponse]
	putSnapshot *connect.Client[PutSnapshotRequest, PutSnapshotResponse]
}

// NewSnapshotServiceClient creates a client for the service at baseURL.
func NewSnapshotServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SnapshotServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &SnapshotServiceClient{
		getSnapshot: connect.NewClient[GetSnapshotRequest, GetSnapshotResponse](httpClient, baseURL+SnapshotServiceGetSnapshotProcedure, opts...),
		putSnapshot: connect.NewClient[PutSnapshotRequest, PutSnapshotResponse](httpClient, baseURL+SnapshotServicePutSnapshotProcedure, opts...),
	}
}

func (c *SnapshotServiceClient) GetSnapshot(ctx context.Context, req *connect.Request[GetSnapshotRequest]) (*connect.Response[GetSnapshotResponse], error) {
	return c.getSnapshot.CallUnary(ctx, req)
}

func (c *SnapshotServiceClient) PutSnapshot(ctx context.Context, req *connect.Request[PutSnapshotRequest]) (*connect.Response[PutSnapshotResponse], error) {
	return c.putSnapshot.CallUnary(ctx, req)
}

// AuthServiceClient calls AuthService.
type AuthServiceClient struct {
	register *connect.Client[RegisterRequest, RegisterResponse]
	login    *connect.Client[LoginRequest, LoginResponse]
}

// NewAuthServiceClient creates a client for the service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &AuthServiceClient{
		register: connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:    connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
	}
}

func (c *AuthServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}
