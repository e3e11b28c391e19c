package checks

import (
	"context"
	"strings"

	"github.com/asaskevich/govalidator"

	"mailguard/internal/validation/lists"
	"mailguard/internal/validation/models"
)

// maxAddressLength is the RFC 5321 path limit minus the angle brackets.
const maxAddressLength = 254

// Syntax validates the address shape.
type Syntax struct{}

func (Syntax) Name() models.CheckName { return models.CheckSyntax }

func (Syntax) Run(_ context.Context, in Input) (Outcome, error) {
	ok := in.Local != "" && in.Domain != "" &&
		len(in.Email) <= maxAddressLength &&
		govalidator.IsEmail(in.Email)
	return verdict(ok, models.SignalInvalidSyntax), nil
}

// Alias flags plus-addressing ("jane+promo@...").
type Alias struct{}

func (Alias) Name() models.CheckName { return models.CheckAlias }

func (Alias) Run(_ context.Context, in Input) (Outcome, error) {
	return verdict(!strings.Contains(in.Local, "+"), models.SignalAliasPattern), nil
}

// Role flags shared mailboxes such as admin@ or support@.
type Role struct {
	Lists *lists.Store
}

func (Role) Name() models.CheckName { return models.CheckRoleEmail }

func (c Role) Run(_ context.Context, in Input) (Outcome, error) {
	return verdict(!c.Lists.Current().IsRole(in.Local), models.SignalRoleEmail), nil
}

// Disposable flags throwaway-mail domains.
type Disposable struct {
	Set lists.DisposableSet
}

func (Disposable) Name() models.CheckName { return models.CheckDisposable }

func (c Disposable) Run(ctx context.Context, in Input) (Outcome, error) {
	if in.Domain == "" {
		return pass(), nil
	}
	hit, err := c.Set.IsDisposable(ctx, in.Domain)
	if err != nil {
		return Outcome{}, err
	}
	return verdict(!hit, models.SignalDisposableEmail), nil
}
