package user_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/openbill/openbill/internal/user"
)

func TestService_SignUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := user.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *user.User) error {
			u.ID = uuid.New()
			return nil
		})

	svc := user.NewService(repo)

	got, err := svc.SignUp(context.Background(), "owner@acme.test", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "owner@acme.test", got.Email)
	assert.NotEqual(t, "hunter22", got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("hunter22")))
}

func TestService_Authenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &user.User{ID: uuid.New(), Email: "owner@acme.test", PasswordHash: string(hash)}

	type testCase struct {
		name      string
		password  string
		setupMock func(m *user.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name:     "Success",
			password: "hunter22",
			setupMock: func(m *user.MockRepository) {
				m.EXPECT().
					GetByEmail(gomock.Any(), "owner@acme.test").
					Return(stored, nil)
			},
		},
		{
			name:     "WrongPassword",
			password: "nope",
			setupMock: func(m *user.MockRepository) {
				m.EXPECT().
					GetByEmail(gomock.Any(), "owner@acme.test").
					Return(stored, nil)
			},
			wantErr: user.ErrInvalidCredentials,
		},
		{
			name:     "UnknownEmailIsIndistinguishable",
			password: "hunter22",
			setupMock: func(m *user.MockRepository) {
				m.EXPECT().
					GetByEmail(gomock.Any(), "owner@acme.test").
					Return(nil, user.ErrNotFound)
			},
			wantErr: user.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := user.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := user.NewService(repo)

			got, err := svc.Authenticate(context.Background(), "owner@acme.test", tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, stored.ID, got.ID)
		})
	}
}

func TestService_UpdateProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	id := uuid.New()

	repo := user.NewMockRepository(ctrl)
	repo.EXPECT().
		GetUser(gomock.Any(), id).
		Return(&user.User{ID: id, BusinessName: "Old Name", Phone: "111"}, nil)
	repo.EXPECT().
		UpdateProfile(gomock.Any(), gomock.Any()).
		Return(nil)

	svc := user.NewService(repo)

	name := "Acme LLC"
	bank := "First National"

	got, err := svc.UpdateProfile(context.Background(), id, user.ProfileParams{
		BusinessName: &name,
		BankName:     &bank,
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme LLC", got.BusinessName)
	assert.Equal(t, "First National", got.BankName)
	assert.Equal(t, "111", got.Phone, "untouched fields keep their values")
}
