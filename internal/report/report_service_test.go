package report

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FileReport(ctx context.Context, report *models.Report) (*models.Post, error) {
	args := m.Called(ctx, report)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockStore) ListReports(ctx context.Context) ([]models.ReportView, error) {
	args := m.Called(ctx)
	views, _ := args.Get(0).([]models.ReportView)
	return views, args.Error(1)
}

func (m *MockStore) DismissReport(ctx context.Context, reportID string) error {
	return m.Called(ctx, reportID).Error(0)
}

func (m *MockStore) DeleteReportedPost(ctx context.Context, reportID string) error {
	return m.Called(ctx, reportID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PostFlagged(ctx context.Context, post *models.Post) error {
	return m.Called(ctx, post).Error(0)
}

func TestFileReport_NotifiesOnlyWhenThresholdReached(t *testing.T) {
	// Arrange
	store := new(MockStore)
	notifier := new(MockNotifier)
	flagged := &models.Post{ID: "p1", IsFlagged: true, ReportCount: config.ReportFlagThreshold}
	store.On("FileReport", mock.Anything, mock.MatchedBy(func(r *models.Report) bool {
		return r.ReporterID == "u5" && r.Reason == "spam"
	})).Return(flagged, nil)
	store.On("FileReport", mock.Anything, mock.MatchedBy(func(r *models.Report) bool {
		return r.ReporterID == "u6"
	})).Return(&models.Post{ID: "p1", IsFlagged: true, ReportCount: config.ReportFlagThreshold + 1}, nil)
	notifier.On("PostFlagged", mock.Anything, flagged).Return(errors.New("telegram down")).Once()
	svc := NewService(store, notifier, "admin", zerolog.Nop())

	// Act
	err5 := svc.FileReport(context.Background(), "u5", "p1", "  spam ")
	err6 := svc.FileReport(context.Background(), "u6", "p1", "spam")

	// Assert
	assert.NoError(t, err5, "notifier failures are not the reporter's problem")
	assert.NoError(t, err6)
	notifier.AssertExpectations(t)
}

func TestFileReport_Validation(t *testing.T) {
	svc := NewService(new(MockStore), nil, "admin", zerolog.Nop())
	ctx := context.Background()

	assert.True(t, errors.Is(svc.FileReport(ctx, "", "p1", "r"), apperrors.ErrUnauthenticated))
	assert.True(t, errors.Is(svc.FileReport(ctx, "u1", "", "r"), apperrors.ErrValidation))
	assert.Equal(t, apperrors.CodeEmptyContent, apperrors.CodeOf(svc.FileReport(ctx, "u1", "p1", "  ")))
	assert.Equal(t, apperrors.CodeContentTooLong, apperrors.CodeOf(svc.FileReport(ctx, "u1", "p1", strings.Repeat("x", 501))))
}

func TestAdminGate(t *testing.T) {
	store := new(MockStore)
	store.On("ListReports", mock.Anything).Return([]models.ReportView{{Report: models.Report{ID: "r1"}}}, nil)
	store.On("DismissReport", mock.Anything, "r1").Return(nil)
	store.On("DeleteReportedPost", mock.Anything, "r2").Return(nil)
	svc := NewService(store, nil, "admin-id", zerolog.Nop())
	ctx := context.Background()

	// not the admin: forbidden, no data fetched
	for _, uid := range []string{"someone", "ADMIN-ID", "admin-id "} {
		_, err := svc.ListReports(ctx, uid)
		assert.True(t, errors.Is(err, apperrors.ErrForbidden), uid)
		assert.True(t, errors.Is(svc.Dismiss(ctx, uid, "r1"), apperrors.ErrForbidden))
		assert.True(t, errors.Is(svc.DeletePost(ctx, uid, "r2"), apperrors.ErrForbidden))
	}
	store.AssertNotCalled(t, "ListReports", mock.Anything)

	_, err := svc.ListReports(ctx, "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))

	views, err := svc.ListReports(ctx, "admin-id")
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.NoError(t, svc.Dismiss(ctx, "admin-id", "r1"))
	assert.NoError(t, svc.DeletePost(ctx, "admin-id", "r2"))
	store.AssertExpectations(t)
}

func TestAdminGate_NoAdminConfigured(t *testing.T) {
	svc := NewService(new(MockStore), nil, "", zerolog.Nop())

	assert.False(t, svc.IsAdmin(""))
	_, err := svc.ListReports(context.Background(), "anyone")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}
