package requestdata

import (
  "context"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

// RequestData is filled by the auth middleware. Role stays empty until the
// role gate has loaded the user row.
type RequestData struct {
  TokenString     string
  UserID          string
  Email           string
  Role            string
}
