package trustclient

import (
	"context"

	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockTrustService mocks the interfaces.TrustService interface
type MockTrustService struct {
	mock.Mock
}

// GetAuthShare mocks the GetAuthShare method
func (m *MockTrustService) GetAuthShare(ctx context.Context, deviceID string, auth interfaces.AuthData) (*interfaces.AuthShare, error) {
	args := m.Called(ctx, deviceID, auth)
	share, _ := args.Get(0).(*interfaces.AuthShare)
	return share, args.Error(1)
}

// CreateSigner mocks the CreateSigner method
func (m *MockTrustService) CreateSigner(ctx context.Context, deviceID string, auth interfaces.AuthData, params interfaces.CreateSignerParams) error {
	args := m.Called(ctx, deviceID, auth, params)
	return args.Error(0)
}

// SendOTP mocks the SendOTP method
func (m *MockTrustService) SendOTP(ctx context.Context, deviceID string, auth interfaces.AuthData, params interfaces.OTPParams) (*interfaces.OTPResult, error) {
	args := m.Called(ctx, deviceID, auth, params)
	result, _ := args.Get(0).(*interfaces.OTPResult)
	return result, args.Error(1)
}
