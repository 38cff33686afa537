package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/handlers"
	"github.com/verdello/shop-backend/internal/hash"
	"github.com/verdello/shop-backend/internal/httperr"
	mwauth "github.com/verdello/shop-backend/internal/middleware/auth"
	"github.com/verdello/shop-backend/internal/models"
	"github.com/verdello/shop-backend/internal/token"
	httpserver "github.com/verdello/shop-backend/internal/transport/http"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *token.Service
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	// FK enforcement is per-connection in sqlite; pin the pool to one
	// connection so the pragma and the in-memory schema stay visible.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderDetail{},
		&models.Review{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)
	tokens := token.NewService([]byte("test-jwt-secret"), time.Hour)

	e := echo.New()
	e.HTTPErrorHandler = httperr.Handler()

	httpserver.Register(e, &httpserver.Deps{
		UserHandler:    &handlers.UserHandler{DB: db, Tokens: tokens},
		ProductHandler: &handlers.ProductHandler{DB: db},
		Auth:           &mwauth.Service{DB: db, Tokens: tokens},
	})

	return &testEnv{T: t, E: e, DB: db, Tokens: tokens}
}

func (env *testEnv) do(method, path string, body any, tok string) *httptest.ResponseRecorder {
	env.T.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(env.T, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(mwauth.HeaderToken, tok)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createUser(username, email, password, role string) models.User {
	env.T.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) tokenFor(user models.User) string {
	env.T.Helper()

	signed, err := env.Tokens.Issue(user.ID, user.Email)
	require.NoError(env.T, err)
	return signed
}

// tokenWithTTL signs with the env secret but an arbitrary lifetime, so tests
// can mint already-expired tokens.
func tokenWithTTL(t *testing.T, env *testEnv, user models.User, ttl time.Duration) string {
	t.Helper()

	svc := &token.Service{Secret: env.Tokens.Secret, TTL: ttl}
	signed, err := svc.Issue(user.ID, user.Email)
	require.NoError(t, err)
	return signed
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
