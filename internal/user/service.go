// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/repository"
)

// SessionRevoker はユーザーの全セッション破棄インターフェース。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 管理コンソールからのユーザー削除を提供する。
type Service struct {
	userRepo   repository.UserRepository
	revoker    SessionRevoker
	adminEmail string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, revoker SessionRevoker, adminEmail string) *Service {
	return &Service{
		userRepo:   userRepo,
		revoker:    revoker,
		adminEmail: adminEmail,
	}
}

// Delete は指定IDのユーザーを削除する。
// 削除順序: sessions → user（+ CASCADE: addresses, credentials）
// 管理者自身のユーザーは削除できない。
// ストアのエラーはラップして返し、呼び出し側で分類できるようにする。
func (s *Service) Delete(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if model.IsAdminEmail(user.Email, s.adminEmail) {
		slog.Warn("refused to delete administrator identity", slog.String("user_id", userID))
		return model.NewProtectedIdentityError()
	}

	slog.Info("ユーザー削除を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if s.revoker != nil {
		if err := s.revoker.DeleteByUserID(ctx, userID); err != nil {
			// usersテーブルの障害と区別できるよう、ここで分類しておく
			return fmt.Errorf("セッションの削除に失敗しました: %w", repository.ClassifyError("sessions", err))
		}
	}

	// 2. ユーザーを削除（addresses, credentialsはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザー削除が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
