package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() Service {
	return NewService(NewRepository(SeedUsers()), NewRegistrar(), zap.NewNop())
}

func TestLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, RoleAdmin, u.Role)

	u, err = svc.Login(ctx, "doctor1", "doc123")
	require.NoError(t, err)
	assert.Equal(t, RoleExpert, u.Role)
	assert.Equal(t, "Beijing Tsinghua Hospital", u.HospitalName)
}

func TestLoginRejects(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []struct{ name, username, password string }{
		{"wrong password", "admin", "wrong"},
		{"unknown user", "nobody", "admin123"},
		{"other user's password", "doctor1", "admin123"},
		{"case mismatch", "Admin", "admin123"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := svc.Login(ctx, tc.username, tc.password)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestRegisterNotImplemented(t *testing.T) {
	form := NewRegisterForm()
	assert.Equal(t, RoleAnnotator, form.Role)

	_, err := newTestService().Register(context.Background(), form)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestRepositoryListIsSorted(t *testing.T) {
	users := NewRepository(SeedUsers()).List(context.Background())
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, "doctor1", users[1].Username)
}
