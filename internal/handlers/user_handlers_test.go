package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verdello/shop-backend/internal/handlers"
	"github.com/verdello/shop-backend/internal/hash"
	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/models"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users", map[string]string{
		"username": "test_user",
		"email":    "test@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "user registered successfully", body["message"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "expected user object in response")
	require.Equal(t, "test_user", user["username"])
	require.Equal(t, "user", user["role"])
	require.NotEmpty(t, user["id"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "password_hash")

	var stored models.User
	require.NoError(t, env.DB.Where("email = ?", "test@example.com").First(&stored).Error)
	require.NotEqual(t, "password", stored.PasswordHash)
	require.True(t, hash.CheckPassword(stored.PasswordHash, "password"))
}

func TestRegisterInvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"", "plainaddress", "missing-dot@example", "missing-at.example.com"} {
		rec := env.do(http.MethodPost, "/users", map[string]string{
			"username": "someone",
			"email":    email,
			"password": "password",
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "email %q", email)
		require.Equal(t, httperr.KindValidation, decodeBody(t, rec)["error"])
	}
}

func TestRegisterShortPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users", map[string]string{
		"username": "someone",
		"email":    "someone@example.com",
		"password": "1234",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, httperr.KindValidation, decodeBody(t, rec)["error"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"username": "first",
		"email":    "dup@example.com",
		"password": "password",
	}
	rec := env.do(http.MethodPost, "/users", payload, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	payload["username"] = "second"
	rec = env.do(http.MethodPost, "/users", payload, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, httperr.KindConflict, decodeBody(t, rec)["error"])

	// The first registration stays intact.
	var stored models.User
	require.NoError(t, env.DB.Where("email = ?", "dup@example.com").First(&stored).Error)
	require.Equal(t, "first", stored.Username)
}

func TestRoleForUsername(t *testing.T) {
	cases := map[string]string{
		"root-admin-2":  "admin",
		"Administrator": "admin",
		"ADMIN":         "admin",
		"root2":         "user",
		"alice":         "user",
	}
	for username, want := range cases {
		require.Equal(t, want, handlers.RoleForUsername(username), "username %q", username)
	}
}

func TestRegisterRolePolicy(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/users", map[string]string{
		"username": "root-Admin-2",
		"email":    "elevated@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	require.Equal(t, "admin", user["role"])

	rec = env.do(http.MethodPost, "/users", map[string]string{
		"username": "root2",
		"email":    "plain@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	user = decodeBody(t, rec)["user"].(map[string]any)
	require.Equal(t, "user", user["role"])
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	created := env.createUser("test_user", "login@example.com", "password", "user")

	rec := env.do(http.MethodPost, "/users/login", map[string]string{
		"email":    "unknown@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{
		"email":    "login@example.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httperr.KindUnauthenticated, decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPost, "/users/login", map[string]string{
		"email":    "login@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	signed, ok := body["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, signed)

	claims, err := env.Tokens.Verify(signed)
	require.NoError(t, err)
	require.NotNil(t, claims)
	userID, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, created.ID, userID)
	require.Equal(t, "login@example.com", claims.Email)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	userA := env.createUser("alice", "alice@example.com", "password", "user")
	env.createUser("bob", "bob@example.com", "password", "user")

	rec := env.do(http.MethodGet, "/users/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A token issued for user A never resolves to another user's data.
	rec = env.do(http.MethodGet, "/users/profile", nil, env.tokenFor(userA))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	require.EqualValues(t, userA.ID, user["id"])
	require.Equal(t, "alice@example.com", user["email"])
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("old_name", "update@example.com", "password", "user")
	tok := env.tokenFor(user)

	rec := env.do(http.MethodPut, "/users/profile", map[string]string{}, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, httperr.KindValidation, decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPut, "/users/profile", map[string]string{"password": "1234"}, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/users/profile", map[string]string{"username": "new_name"}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, env.DB.First(&stored, user.ID).Error)
	require.Equal(t, "new_name", stored.Username)

	rec = env.do(http.MethodPut, "/users/profile", map[string]string{"password": "changed-password"}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	// The new password works for login, the old one does not.
	rec = env.do(http.MethodPost, "/users/login", map[string]string{
		"email":    "update@example.com",
		"password": "password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/users/login", map[string]string{
		"email":    "update@example.com",
		"password": "changed-password",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteProfileInvalidatesToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("doomed", "doomed@example.com", "password", "user")
	tok := env.tokenFor(user)

	rec := env.do(http.MethodDelete, "/users/profile", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	require.ErrorContains(t, env.DB.First(&models.User{}, user.ID).Error, "record not found")

	// The unexpired token no longer authenticates anywhere.
	for _, probe := range []struct{ method, path string }{
		{http.MethodGet, "/users/profile"},
		{http.MethodPut, "/users/profile"},
		{http.MethodDelete, "/users/profile"},
	} {
		rec = env.do(probe.method, probe.path, map[string]string{"username": "x"}, tok)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", probe.method, probe.path)
		require.Equal(t, httperr.KindUnauthenticated, decodeBody(t, rec)["error"])
	}
}

func TestDeleteProfileCascades(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("shopper", "shopper@example.com", "password", "user")

	product := models.Product{Name: "widget", Description: "a widget", Price: 9.99, Stock: 3}
	require.NoError(t, env.DB.Create(&product).Error)

	order := models.Order{UserID: user.ID, OrderDate: time.Now(), Status: "pending"}
	require.NoError(t, env.DB.Create(&order).Error)
	detail := models.OrderDetail{OrderID: order.ID, ProductID: product.ID, Quantity: 1, Price: 9}
	require.NoError(t, env.DB.Create(&detail).Error)
	review := models.Review{ProductID: product.ID, UserID: user.ID, Rating: 5, Comment: "great"}
	require.NoError(t, env.DB.Create(&review).Error)

	rec := env.do(http.MethodDelete, "/users/profile", nil, env.tokenFor(user))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	env.DB.Model(&models.Order{}).Where("user_id = ?", user.ID).Count(&count)
	require.Zero(t, count)
	env.DB.Model(&models.OrderDetail{}).Where("order_id = ?", order.ID).Count(&count)
	require.Zero(t, count)
	env.DB.Model(&models.Review{}).Where("user_id = ?", user.ID).Count(&count)
	require.Zero(t, count)

	// The product the user reviewed is untouched.
	require.NoError(t, env.DB.First(&models.Product{}, product.ID).Error)
}
