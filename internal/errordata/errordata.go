package errordata

import (
	"context"

	"github.com/gakusta-org/gakusta-backend/internal/apperrors"
)

type key struct{}

var errorDataKey key

// ErrorData carries the error a handler responded with, so the access log can report it.
type ErrorData struct {
	Err *apperrors.Error
}

func WithErrorData(ctx context.Context) context.Context {
	ed := &ErrorData{}
	return context.WithValue(ctx, errorDataKey, ed)
}

func GetErrorData(ctx context.Context) *ErrorData {
	val := ctx.Value(errorDataKey)
	ed, ok := val.(*ErrorData)
	if !ok {
		return nil
	}
	return ed
}

func (ed *ErrorData) SetError(err *apperrors.Error) {
	ed.Err = err
}

func (ed *ErrorData) HasError() bool {
	return ed.Err != nil
}

func (ed *ErrorData) Code() string {
	if ed.Err == nil {
		return ""
	}
	return string(ed.Err.Code)
}
