package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		role  string
		want  bool
	}{
		{
			name:  "role present",
			roles: []string{"clinician", "admin"},
			role:  "admin",
			want:  true,
		},
		{
			name:  "role absent",
			roles: []string{"clinician"},
			role:  "admin",
			want:  false,
		},
		{
			name:  "roles are case sensitive",
			roles: []string{"Admin"},
			role:  "admin",
			want:  false,
		},
		{
			name:  "nil roles",
			roles: nil,
			role:  "admin",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &UserContext{UserID: "user123", Roles: tt.roles}
			assert.Equal(t, tt.want, user.HasRole(tt.role))
		})
	}
}

func TestSetAndGetUserFromContext(t *testing.T) {
	user := &UserContext{
		UserID: "user123",
		Email:  "doc@example.com",
		Roles:  []string{"clinician"},
	}

	ctx := SetUserInContext(context.Background(), user)

	got, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, user, got)
}

func TestGetUserFromContext_Missing(t *testing.T) {
	got, err := GetUserFromContext(context.Background())

	assert.ErrorIs(t, err, ErrNoUserInContext)
	assert.Nil(t, got)
}

func TestGetUserFromContext_NilUser(t *testing.T) {
	ctx := SetUserInContext(context.Background(), nil)

	got, err := GetUserFromContext(ctx)

	assert.ErrorIs(t, err, ErrNoUserInContext)
	assert.Nil(t, got)
}
