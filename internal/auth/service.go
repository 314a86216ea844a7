// Package auth はパスワード認証とセッションの発行・破棄・変更通知を提供する。
package auth

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/repository"
	"github.com/hitoshi/storeadmin/internal/session"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はSession Storeの実装。
// 資格情報とセッションをPostgreSQLに保存し、変更をBroadcaster経由で通知する。
type Service struct {
	userRepo    repository.UserRepository
	credRepo    repository.CredentialRepository
	sessionRepo repository.SessionRepository
	broadcaster Broadcaster
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	broadcaster Broadcaster,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		credRepo:    credRepo,
		sessionRepo: sessionRepo,
		broadcaster: broadcaster,
		config:      config,
		now:         time.Now,
	}
}

// CurrentSession は最も新しい有効セッションを返す。
// データベースに到達できない場合はsession.ErrStoreUnavailableをラップして返す。
func (s *Service) CurrentSession(ctx context.Context) (*model.Session, error) {
	sess, err := s.sessionRepo.FindLatestActive(ctx)
	if err != nil {
		if isUnavailable(err) {
			return nil, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return sess, nil
}

// SignIn はメールアドレスとパスワードを検証し、新しいセッションを発行する。
// メールアドレスの存在有無にかかわらず、不一致は同じエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	cred, err := s.credRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	sess, err := s.createSession(ctx, cred.UserID, cred.Email)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.TouchLastLogin(ctx, cred.UserID, sess.CreatedAt); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", cred.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, model.SessionEvent{Kind: model.SessionSignedIn, SessionID: sess.ID, Session: sess})

	slog.Info("operator signed in",
		slog.String("user_id", cred.UserID),
		slog.String("session_id", sess.ID),
	)
	return sess, nil
}

// SignOut はセッションを破棄し、サインアウトを通知する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.publish(ctx, model.SessionEvent{Kind: model.SessionSignedOut, SessionID: sessionID})

	slog.Info("operator signed out", slog.String("session_id", sessionID))
	return nil
}

// Refresh はセッションの有効期限を現在時刻からSessionMaxAge秒後に延長する。
// セッションが存在しないか期限切れの場合は未ログインエラーを返す。
func (s *Service) Refresh(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewNotAuthenticatedError()
	}

	expiresAt := s.now().Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if err := s.sessionRepo.Extend(ctx, sessionID, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotAuthenticatedError()
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	s.publish(ctx, model.SessionEvent{Kind: model.SessionRefreshed, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// OnSessionChange はセッション変更通知を購読する。
func (s *Service) OnSessionChange(fn func(model.SessionEvent)) (func(), error) {
	return s.broadcaster.Subscribe(fn)
}

// SetPassword は指定メールアドレスのユーザーのパスワードを設定する。
// ユーザーが存在しない場合は作成する。
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	hash, version, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.EnsureByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to provision user: %w", err)
	}

	if err := s.credRepo.Upsert(ctx, &model.Credential{
		UserID:       user.ID,
		Email:        user.Email,
		PasswordHash: hash,
		HashVersion:  version,
	}); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	slog.Info("password updated", slog.String("user_id", user.ID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID, email string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Email:     email,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// publish は変更通知を配信する。配信の失敗は操作自体の失敗とはしない。
func (s *Service) publish(ctx context.Context, event model.SessionEvent) {
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		slog.Warn("failed to broadcast session event",
			slog.String("kind", string(event.Kind)),
			slog.String("session_id", event.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

// isUnavailable はerrが接続不能を示すかを判定する。
func isUnavailable(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded)
}

// compile-time interface check
var _ session.Store = (*Service)(nil)
