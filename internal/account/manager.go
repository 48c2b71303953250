// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chirpyard/account")

// DefaultMaxValueLength bounds text setting values in runes.
const DefaultMaxValueLength = 360

// Construction errors.
var (
	ErrNilAccountRepository = errors.New("account repository is required")
	ErrNilChatRepository    = errors.New("chat repository is required")
	ErrNilPostRepository    = errors.New("post repository is required")
	ErrNilNetlogRepository  = errors.New("netlog repository is required")
	ErrNilHasher            = errors.New("password hasher is required")
	ErrNilPolicy            = errors.New("content policy is required")
)

// Manager implements the account operations.
type Manager struct {
	accounts AccountRepository
	chats    ChatRepository
	posts    PostRepository
	netlog   NetlogRepository
	hasher   PasswordHasher
	policy   ContentPolicy
	limiter  AttemptLimiter // optional, can be nil
	logger   *slog.Logger

	defaultCost    int
	maxValueLength int
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithAttemptLimiter enables authentication throttling.
// If not provided, attempts are not throttled.
func WithAttemptLimiter(l AttemptLimiter) ManagerOption {
	return func(m *Manager) {
		m.limiter = l
	}
}

// WithDefaultCost sets the work factor used when callers pass cost 0.
func WithDefaultCost(cost int) ManagerOption {
	return func(m *Manager) {
		m.defaultCost = cost
	}
}

// WithMaxValueLength sets the rune limit for text settings.
func WithMaxValueLength(n int) ManagerOption {
	return func(m *Manager) {
		m.maxValueLength = n
	}
}

// NewManager creates a Manager. Returns an error if a required collaborator is nil.
func NewManager(repos Repositories, hasher PasswordHasher, policy ContentPolicy, opts ...ManagerOption) (*Manager, error) {
	switch {
	case repos.Accounts == nil:
		return nil, ErrNilAccountRepository
	case repos.Chats == nil:
		return nil, ErrNilChatRepository
	case repos.Posts == nil:
		return nil, ErrNilPostRepository
	case repos.Netlog == nil:
		return nil, ErrNilNetlogRepository
	case hasher == nil:
		return nil, ErrNilHasher
	case policy == nil:
		return nil, ErrNilPolicy
	}
	m := &Manager{
		accounts:       repos.Accounts,
		chats:          repos.Chats,
		posts:          repos.Posts,
		netlog:         repos.Netlog,
		hasher:         hasher,
		policy:         policy,
		logger:         slog.Default(),
		defaultCost:    DefaultCost,
		maxValueLength: DefaultMaxValueLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.defaultCost < MinCost || m.defaultCost > MaxCost {
		return nil, oops.Code("ACCOUNT_INVALID_COST").
			With("cost", m.defaultCost).
			Errorf("default cost must be between %d and %d", MinCost, MaxCost)
	}
	if m.maxValueLength <= 0 {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").
			With("max_value_length", m.maxValueLength).
			Errorf("max value length must be positive")
	}
	m.logger = m.logger.With("component", "account")
	return m, nil
}

// begin opens a span for op and returns the function that closes it.
func (m *Manager) begin(ctx context.Context, op, username string) (context.Context, func(Outcome, error)) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "account."+op,
		trace.WithAttributes(attribute.String("account.username", username)),
	)
	return ctx, func(outcome Outcome, err error) {
		span.SetAttributes(attribute.String("account.outcome", outcome.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		recordOperation(op, outcome, started)
	}
}

func (m *Manager) cost(cost int) int {
	if cost == 0 {
		return m.defaultCost
	}
	return cost
}

// load fetches the account stored under the exact key username.
// A zero Outcome means the account was loaded.
func (m *Manager) load(ctx context.Context, op, username string) (*Account, Outcome, error) {
	acct, err := m.accounts.Get(ctx, username)
	if errors.Is(err, ErrNotFound) {
		m.logger.DebugContext(ctx, "account does not exist", "operation", op, "username", username)
		return nil, NotFound, nil
	}
	if err != nil {
		return nil, IOError, ioError(op, username, "load account", err)
	}
	return acct, 0, nil
}

// loadActive is load plus the ban gate.
func (m *Manager) loadActive(ctx context.Context, op, username string) (*Account, Outcome, error) {
	acct, outcome, err := m.load(ctx, op, username)
	if outcome != 0 {
		return nil, outcome, err
	}
	if acct.Banned {
		m.logger.InfoContext(ctx, "account is banned", "operation", op, "username", username)
		return nil, Banned, nil
	}
	return acct, 0, nil
}

func (m *Manager) save(ctx context.Context, op string, acct *Account) (Outcome, error) {
	if err := m.accounts.Update(ctx, acct); err != nil {
		return IOError, ioError(op, acct.Username, "update account", err)
	}
	return Updated, nil
}

// ioError reports a storage failure as ACCOUNT_IO_ERROR.
func ioError(op, username, step string, err error) error {
	return wrapCause(oops.Code("ACCOUNT_IO_ERROR").
		With("operation", op).
		With("username", username).
		With("step", step), err)
}

// invalidInput reports a rejected argument as ACCOUNT_INVALID_INPUT wrapping
// ErrInvalidInput.
func invalidInput(op string, err error) error {
	if !errors.Is(err, ErrInvalidInput) {
		err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return wrapCause(oops.Code("ACCOUNT_INVALID_INPUT").With("operation", op), err)
}

func lockKey(username string) string {
	return "auth:" + strings.ToLower(username)
}

// Create registers username with password. A cost of 0 uses the default.
func (m *Manager) Create(ctx context.Context, username, password string, cost int) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "create", username)
	defer func() { end(outcome, err) }()

	if err := m.policy.ValidateUsername(username); err != nil {
		return InvalidInput, invalidInput("create", err)
	}
	if outcome, err := m.exists(ctx, "create", username, true); outcome != NotFound {
		if outcome == Exists {
			m.logger.InfoContext(ctx, "not creating account: already exists", "username", username)
		}
		return outcome, err
	}

	hash, err := m.hasher.Hash(password, m.cost(cost))
	if errors.Is(err, ErrInvalidInput) {
		return InvalidInput, invalidInput("create", err)
	}
	if err != nil {
		return IOError, ioError("create", username, "hash password", err)
	}

	acct := NewAccount(username, hash)
	if err := m.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			m.logger.InfoContext(ctx, "not creating account: lost race on username", "username", username)
			return Exists, nil
		}
		return IOError, ioError("create", username, "insert account", err)
	}
	m.logger.InfoContext(ctx, "account created", "username", username, "id", acct.ID.String())
	return Created, nil
}

// Exists reports whether username is taken.
//
// With caseInsensitive the lowercase index is matched exactly. Without it,
// Exists is reported only when a different account (one whose key is not
// exactly username) shares the lowercase index, which is the collision a
// rename or import must avoid.
func (m *Manager) Exists(ctx context.Context, username string, caseInsensitive bool) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "exists", username)
	defer func() { end(outcome, err) }()

	return m.exists(ctx, "exists", username, caseInsensitive)
}

func (m *Manager) exists(ctx context.Context, op, username string, caseInsensitive bool) (Outcome, error) {
	keys, err := m.accounts.FindByLowerUsername(ctx, strings.ToLower(username))
	if err != nil {
		return IOError, ioError(op, username, "find by lower username", err)
	}
	if caseInsensitive {
		if len(keys) > 0 {
			return Exists, nil
		}
		return NotFound, nil
	}
	for _, k := range keys {
		if k != username {
			return Exists, nil
		}
	}
	return NotFound, nil
}

// IsBanned reports Banned or NotBanned for an existing account.
func (m *Manager) IsBanned(ctx context.Context, username string) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "is_banned", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.load(ctx, "is_banned", username)
	if outcome != 0 {
		return outcome, err
	}
	if acct.Banned {
		return Banned, nil
	}
	return NotBanned, nil
}

// SetBanned sets the ban flag. It is the privileged path and is not gated
// by the current ban state.
func (m *Manager) SetBanned(ctx context.Context, username string, banned bool) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "set_banned", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.load(ctx, "set_banned", username)
	if outcome != 0 {
		return outcome, err
	}
	acct.Banned = banned
	m.logger.InfoContext(ctx, "setting ban state", "username", username, "banned", banned)
	return m.save(ctx, "set_banned", acct)
}

// Authenticate checks password, or a bearer token passed in its place.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "authenticate", username)
	defer func() { end(outcome, err) }()

	if !utf8.ValidString(password) {
		return InvalidInput, invalidInput("authenticate",
			oops.Code("ACCOUNT_INVALID_PASSWORD").Errorf("password is not valid UTF-8"))
	}

	acct, outcome, err := m.loadActive(ctx, "authenticate", username)
	if outcome != 0 {
		return outcome, err
	}

	if m.limiter != nil {
		allowed, wait, limitErr := m.limiter.Allow(ctx, lockKey(username))
		switch {
		case limitErr != nil:
			m.logger.WarnContext(ctx, "attempt limiter unavailable, continuing",
				"username", username, "error", limitErr)
		case !allowed:
			m.logger.InfoContext(ctx, "authentication throttled", "username", username, "retry_after", wait)
			return RateLimited, nil
		}
	}

	if acct.Tokens == nil {
		acct.Tokens = []string{}
		if _, err := m.save(ctx, "authenticate", acct); err != nil {
			return IOError, err
		}
	}
	if matchToken(password, acct.Tokens) >= 0 {
		m.logger.InfoContext(ctx, "authenticated with token", "username", username)
		return AuthenticatedByToken, nil
	}

	ok, err := m.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return IOError, ioError("authenticate", username, "verify password", err)
	}
	if !ok {
		return NotAuthenticated, nil
	}

	cost := m.defaultCost
	if m.hasher.NeedsUpgrade(acct.PasswordHash, cost) {
		m.upgradeHash(ctx, acct, password, cost)
	}
	return Authenticated, nil
}

// upgradeHash re-hashes a verified password. Failures are logged only.
func (m *Manager) upgradeHash(ctx context.Context, acct *Account, password string, cost int) {
	hash, err := m.hasher.Hash(password, cost)
	if err != nil {
		m.logger.WarnContext(ctx, "password hash upgrade failed", "username", acct.Username, "error", err)
		return
	}
	acct.PasswordHash = hash
	if _, err := m.save(ctx, "authenticate", acct); err != nil {
		m.logger.WarnContext(ctx, "password hash upgrade not persisted", "username", acct.Username, "error", err)
		return
	}
	m.logger.InfoContext(ctx, "password hash upgraded", "username", acct.Username, "cost", cost)
}

// ChangePassword replaces the password hash. A cost of 0 uses the default.
// Issued tokens stay valid.
func (m *Manager) ChangePassword(ctx context.Context, username, newPassword string, cost int) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "change_password", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.loadActive(ctx, "change_password", username)
	if outcome != 0 {
		return outcome, err
	}
	hash, err := m.hasher.Hash(newPassword, m.cost(cost))
	if errors.Is(err, ErrInvalidInput) {
		return InvalidInput, invalidInput("change_password", err)
	}
	if err != nil {
		return IOError, ioError("change_password", username, "hash password", err)
	}
	acct.PasswordHash = hash
	m.logger.InfoContext(ctx, "updating account password", "username", username)
	return m.save(ctx, "change_password", acct)
}

// IssueToken creates a bearer token for username. The plaintext is returned
// once; only its digest is stored.
func (m *Manager) IssueToken(ctx context.Context, username string) (token string, outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "issue_token", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.loadActive(ctx, "issue_token", username)
	if outcome != 0 {
		return "", outcome, err
	}
	token, digest, err := GenerateToken()
	if err != nil {
		return "", IOError, ioError("issue_token", username, "generate token", err)
	}
	acct.Tokens = append(acct.Tokens, digest)
	if outcome, err := m.save(ctx, "issue_token", acct); err != nil {
		return "", outcome, err
	}
	return token, Updated, nil
}

// RevokeToken removes token from the account. Reports NotAuthenticated when
// the token is not in the set.
func (m *Manager) RevokeToken(ctx context.Context, username, token string) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "revoke_token", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.loadActive(ctx, "revoke_token", username)
	if outcome != 0 {
		return outcome, err
	}
	i := matchToken(token, acct.Tokens)
	if i < 0 {
		return NotAuthenticated, nil
	}
	acct.Tokens = append(acct.Tokens[:i], acct.Tokens[i+1:]...)
	return m.save(ctx, "revoke_token", acct)
}

// RevokeAllTokens clears the token set.
func (m *Manager) RevokeAllTokens(ctx context.Context, username string) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "revoke_all_tokens", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.loadActive(ctx, "revoke_all_tokens", username)
	if outcome != 0 {
		return outcome, err
	}
	acct.Tokens = []string{}
	return m.save(ctx, "revoke_all_tokens", acct)
}
