package fakeapi

import "context"

func withAccount(ctx context.Context, acct *account) context.Context {
	return context.WithValue(ctx, accountKey{}, acct)
}

func accountFrom(ctx context.Context) *account {
	acct, _ := ctx.Value(accountKey{}).(*account)
	return acct
}
