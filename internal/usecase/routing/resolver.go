// Package routing определяет чат назначения по алиасу или @username.
package routing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/usecase/timeparse"
)

// ErrUnknownTarget возвращается, если алиас или пользователь не найдены.
var ErrUnknownTarget = errors.New("unknown target")

var (
	aliasRe    = regexp.MustCompile(`^[\p{L}][\p{L}\d_]{1,31}$`)
	usernameRe = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{3,31}$`)
)

// UnknownTargetError уточняет ErrUnknownTarget: кого не нашли и какие алиасы известны.
type UnknownTargetError struct {
	Raw   string
	Known []string
}

func (e *UnknownTargetError) Error() string { return fmt.Sprintf("%v: %s", ErrUnknownTarget, e.Raw) }

func (e *UnknownTargetError) Unwrap() error { return ErrUnknownTarget }

// Target: адресат, указанный первым словом команды.
type Target struct {
	Raw      string
	Username bool
}

// ValidAlias проверяет, годится ли строка в алиас чата.
func ValidAlias(alias string) bool {
	alias = strings.ToLower(strings.TrimSpace(alias))
	return aliasRe.MatchString(alias) && !timeparse.IsExpressionWord(alias)
}

// SplitTarget отделяет адресата от остального текста. Первое слово,
// похожее на дату, время или часть выражения, адресатом не считается.
func SplitTarget(text string) (Target, string, bool) {
	text = strings.TrimSpace(text)
	first, rest, ok := strings.Cut(text, " ")
	if !ok || strings.TrimSpace(rest) == "" {
		return Target{}, text, false
	}
	rest = strings.TrimSpace(rest)
	if usernameRe.MatchString(first) {
		return Target{Raw: first, Username: true}, rest, true
	}
	if ValidAlias(first) {
		return Target{Raw: strings.ToLower(first)}, rest, true
	}
	return Target{}, text, false
}

// Resolver ищет чат назначения.
type Resolver struct {
	aliases domain.AliasRepo
	users   domain.UserChatRepo
}

// NewResolver создаёт резолвер.
func NewResolver(aliases domain.AliasRepo, users domain.UserChatRepo) *Resolver {
	return &Resolver{aliases: aliases, users: users}
}

// Resolve возвращает идентификатор чата адресата.
func (r *Resolver) Resolve(ctx context.Context, target Target) (int64, error) {
	var (
		chatID int64
		err    error
	)
	if target.Username {
		chatID, err = r.users.PrivateChatByUsername(ctx, strings.TrimPrefix(target.Raw, "@"))
	} else {
		chatID, err = r.aliases.ChatByAlias(ctx, target.Raw)
	}
	if errors.Is(err, domain.ErrNotFound) {
		unknown := &UnknownTargetError{Raw: target.Raw}
		if !target.Username {
			unknown.Known = r.knownAliases(ctx)
		}
		return 0, unknown
	}
	if err != nil {
		return 0, fmt.Errorf("поиск адресата %s: %w", target.Raw, err)
	}
	return chatID, nil
}

// knownAliases: подсказка для ответа, сбой чтения списка её просто опускает.
func (r *Resolver) knownAliases(ctx context.Context) []string {
	list, err := r.aliases.ListAliases(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a.Alias)
	}
	sort.Strings(names)
	return names
}

// Link сохраняет алиас для чата.
func (r *Resolver) Link(ctx context.Context, alias string, chatID int64, title string, createdBy int64) error {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if !ValidAlias(alias) {
		return fmt.Errorf("%w: недопустимый алиас %q", domain.ErrMalformedExpression, alias)
	}
	return r.aliases.SetAlias(ctx, domain.ChatAlias{Alias: alias, ChatID: chatID, Title: title, CreatedBy: createdBy})
}

// Aliases возвращает все алиасы.
func (r *Resolver) Aliases(ctx context.Context) ([]domain.ChatAlias, error) {
	return r.aliases.ListAliases(ctx)
}

// RememberUser сохраняет личный чат пользователя.
func (r *Resolver) RememberUser(ctx context.Context, uc domain.UserChat) error {
	return r.users.UpsertUserChat(ctx, uc)
}
