// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package authtest provides testify mocks for the auth interfaces.
package authtest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/warden-auth/warden/internal/auth"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t T) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create implements auth.UserRepository.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// FindByEmail implements auth.UserRepository.
func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

// FindByID implements auth.UserRepository.
func (m *MockUserRepository) FindByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

// FindByResetToken implements auth.UserRepository.
func (m *MockUserRepository) FindByResetToken(ctx context.Context, tokenHash string) (*auth.User, error) {
	args := m.Called(ctx, tokenHash)
	return userOrNil(args.Get(0)), args.Error(1)
}

// Update implements auth.UserRepository.
func (m *MockUserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.UserChanges) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

// ConsumeResetToken implements auth.UserRepository.
func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, issuedAfter time.Time) (*auth.User, error) {
	args := m.Called(ctx, tokenHash, newPasswordHash, issuedAfter)
	return userOrNil(args.Get(0)), args.Error(1)
}

func userOrNil(v any) *auth.User {
	if v == nil {
		return nil
	}
	return v.(*auth.User)
}

// MockSessionStore is a mock auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock that asserts its expectations on cleanup.
func NewMockSessionStore(t T) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create implements auth.SessionStore.
func (m *MockSessionStore) Create(ctx context.Context, userID ulid.ULID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// Resolve implements auth.SessionStore.
func (m *MockSessionStore) Resolve(ctx context.Context, token string) (ulid.ULID, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(ulid.ULID)
	return id, args.Error(1)
}

// Destroy implements auth.SessionStore.
func (m *MockSessionStore) Destroy(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) bool {
	args := m.Called(password, hash)
	return args.Bool(0)
}

// NeedsUpgrade implements auth.PasswordHasher.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockRecorder is a mock auth.Recorder.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a mock that asserts its expectations on cleanup.
func NewMockRecorder(t T) *MockRecorder {
	m := &MockRecorder{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// AuthAttempt implements auth.Recorder.
func (m *MockRecorder) AuthAttempt(strategy, outcome string) {
	m.Called(strategy, outcome)
}

// SessionEvent implements auth.Recorder.
func (m *MockRecorder) SessionEvent(event string) {
	m.Called(event)
}

// ResetEvent implements auth.Recorder.
func (m *MockRecorder) ResetEvent(event string) {
	m.Called(event)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository = (*MockUserRepository)(nil)
	_ auth.SessionStore   = (*MockSessionStore)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
	_ auth.Recorder       = (*MockRecorder)(nil)
)
