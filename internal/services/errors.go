package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("services: user not found")
	// ErrProjectNotFound indicates the referenced project does not exist.
	ErrProjectNotFound = errors.New("services: project not found")
	// ErrInvitationNotFound indicates no invitation matches the supplied token.
	ErrInvitationNotFound = errors.New("services: invitation not found")
	// ErrInvitationExpired marks an invitation past its expiry.
	ErrInvitationExpired = errors.New("services: invitation expired")
	// ErrInvitationResolved marks an invitation already resolved to the
	// opposite outcome.
	ErrInvitationResolved = errors.New("services: invitation already resolved")
	// ErrResetTokenInvalid indicates no usable password-reset token matches.
	ErrResetTokenInvalid = errors.New("services: reset token invalid")
	// ErrResetTokenExpired marks a password-reset token past its expiry.
	ErrResetTokenExpired = errors.New("services: reset token expired")
	// ErrResetThrottled signals a reset was requested again inside the
	// cooldown window.
	ErrResetThrottled = errors.New("services: reset request throttled")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
