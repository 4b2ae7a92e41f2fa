package observability

import "context"

type customerCapture struct {
	uid string
}

type customerCaptureKey struct{}

func withCustomerCapture(ctx context.Context, c *customerCapture) context.Context {
	return context.WithValue(ctx, customerCaptureKey{}, c)
}

func customerCaptureFrom(ctx context.Context) *customerCapture {
	c, _ := ctx.Value(customerCaptureKey{}).(*customerCapture)
	return c
}
