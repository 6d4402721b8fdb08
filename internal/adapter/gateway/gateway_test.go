package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/gorm"

	accountv1 "account-service/api/account/v1"
	"account-service/internal/adapter/db/postgres"
	grpcadapter "account-service/internal/adapter/grpc"
	"account-service/internal/usecase/user"
	"account-service/pkg/logger"
	"account-service/pkg/security"
)

// newTestGateway runs the account service in-process and returns a gateway
// mux dialing it.
func newTestGateway(t *testing.T) *runtime.ServeMux {
	t.Helper()
	log := zaptest.NewLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, postgres.AutoMigrate(db))

	hasher, err := security.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	uc := user.New(postgres.NewUserRepoPG(db, log), security.NewPool(hasher, 2), user.NewValidator(), log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(logger.RequestIDInterceptor()))
	accountv1.RegisterAccountServiceServer(srv, grpcadapter.NewAccountServiceServer(uc))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	mux, err := New(accountv1.NewAccountServiceClient(conn), log)
	require.NoError(t, err)
	return mux
}

func do(mux http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type accountResponse struct {
	Message string `json:"message"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func TestGateway_CredentialLifecycle(t *testing.T) {
	mux := newTestGateway(t)
	register := `{"username":"alice1","email":"a@x.com","password":"secret1","confirmedpassword":"secret1"}`

	w := do(mux, http.MethodPost, "/v1/register", register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created accountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Registration successful. Welcome, alice1.", created.Message)
	assert.Equal(t, "alice1", created.User.Username)
	assert.NotContains(t, w.Body.String(), "$2a$")

	w = do(mux, http.MethodPost, "/v1/register", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(mux, http.MethodPost, "/v1/login", `{"username":"alice1","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var loggedIn accountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loggedIn))
	assert.Equal(t, "Login successful.", loggedIn.Message)

	wrong := do(mux, http.MethodPost, "/v1/login", `{"username":"alice1","password":"wrongpw"}`)
	unknown := do(mux, http.MethodPost, "/v1/login", `{"username":"nouser1","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())

	w = do(mux, http.MethodGet, "/v1/users/"+created.User.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.User.ID)

	w = do(mux, http.MethodGet, "/v1/users?q=ali&page=1&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Users      []map[string]any `json:"users"`
		Pagination struct {
			Total int64 `json:"total"`
			Limit int64 `json:"limit"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Users, 1)
	assert.Equal(t, int64(1), list.Pagination.Total)
	assert.Equal(t, int64(5), list.Pagination.Limit)
}

func TestGateway_ConfirmedPasswordAlias(t *testing.T) {
	mux := newTestGateway(t)

	w := do(mux, http.MethodPost, "/v1/register",
		`{"username":"alice1","email":"a@x.com","password":"secret1","confirmed_password":"secret1"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created accountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alice1", created.User.Username)
}

func TestGateway_Errors(t *testing.T) {
	mux := newTestGateway(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "password mismatch",
			method:     http.MethodPost,
			path:       "/v1/register",
			body:       `{"username":"bobby1","email":"b@x.com","password":"secret1","confirmedpassword":"secret2"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    user.MsgPasswordMismatch,
		},
		{
			name:       "invalid registration",
			method:     http.MethodPost,
			path:       "/v1/register",
			body:       `{"username":"b","email":"nope","password":"secret1","confirmedpassword":"secret1"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    user.MsgInvalidRegistration,
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       "/v1/login",
			body:       `[1,2`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "user not found",
			method:     http.MethodGet,
			path:       "/v1/users/6f1c1a8e-8a53-4c2e-9d1b-4a1f0b6b2d11",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			method:     http.MethodGet,
			path:       "/v1/users/not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "page out of range",
			method:     http.MethodGet,
			path:       "/v1/users?page=9223372036854775807&limit=10",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "page is out of range",
		},
		{
			name:       "invalid page",
			method:     http.MethodGet,
			path:       "/v1/users?page=abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(mux, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantMsg != "" {
				var resp errorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}
}

func TestGateway_RequestIDRoundTrip(t *testing.T) {
	mux := newTestGateway(t)

	w := do(mux, http.MethodGet, "/v1/users", "", "X-Request-Id", "req-42")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(logger.RequestIDHeader))
}

func TestHeaderMatcher(t *testing.T) {
	key, ok := headerMatcher("X-Request-Id")
	assert.True(t, ok)
	assert.Equal(t, logger.RequestIDHeader, key)

	key, ok = headerMatcher("Authorization")
	assert.True(t, ok)
	assert.Equal(t, "grpcgateway-Authorization", key)

	_, ok = headerMatcher("X-Custom")
	assert.False(t, ok)
}
