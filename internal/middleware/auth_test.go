package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/requestdata"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

const testSecret = "test-secret"

type fakeUserRepo struct {
	users map[uuid.UUID]*types.User
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	if f.users == nil {
		f.users = map[uuid.UUID]*types.User{}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAuthFixture(t *testing.T, users *fakeUserRepo) (*AuthMiddleware, *gin.Engine) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", testSecret)
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	am, err := NewAuthMiddleware(log, users)
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return am, router
}

func TestRequireAuthResolvesExistingUser(t *testing.T) {
	users := &fakeUserRepo{}
	user, _ := users.Create(context.Background(), nil, &types.User{Email: "ada@example.com"})
	am, router := newAuthFixture(t, users)

	var got *requestdata.RequestData
	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		got = requestdata.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, user.ID.String()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}
	if got == nil || got.UserID != user.ID {
		t.Fatalf("request data: %+v", got)
	}
}

func TestRequireAuthRejectsUnknownUser(t *testing.T) {
	am, router := newAuthFixture(t, &fakeUserRepo{})

	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		t.Errorf("handler must not run for a token without a user row")
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.New().String()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want 401, got %d", w.Code)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	am, router := newAuthFixture(t, &fakeUserRepo{})

	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		t.Errorf("handler must not run without a valid token")
	})

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Bearer not-a-jwt",
	} {
		req := httptest.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s token: want 401, got %d", name, w.Code)
		}
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	users := &fakeUserRepo{}
	user, _ := users.Create(context.Background(), nil, &types.User{Email: "ada@example.com"})
	am, router := newAuthFixture(t, users)

	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/protected?token="+signToken(t, user.ID.String()), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", w.Code)
	}
}
