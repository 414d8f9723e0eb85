package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/groupsplit/internal/auth"
	"github.com/mmynk/groupsplit/internal/ledger"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/internal/middleware"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/internal/validation"
)

// noGroupsMessage is what callers see when they belong to no group.
const noGroupsMessage = "User is not part of any groups."

var errInternal = errors.New("internal error")

// toConnectError maps domain errors to Connect codes. Field-scoped errors
// carry a google.protobuf.Struct detail of field to message. Anything
// unrecognised is logged and hidden behind CodeInternal.
func toConnectError(m *metrics.Metrics, err error) error {
	if verr, ok := validation.As(err); ok {
		m.ValidationFailed(verr.Field)
		code := connect.CodeInvalidArgument
		if verr.Kind == validation.Authentication {
			code = connect.CodeUnauthenticated
		}
		return fieldError(code, verr)
	}

	switch {
	case errors.Is(err, ledger.ErrNoGroups):
		return connect.NewError(connect.CodeNotFound, errors.New(noGroupsMessage))
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ledger.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	slog.Error("Unhandled error", "error", err)
	return connect.NewError(connect.CodeInternal, errInternal)
}

func fieldError(code connect.Code, verr *validation.Error) error {
	cerr := connect.NewError(code, errors.New(verr.Message))

	fields := make(map[string]any, 1)
	for k, v := range verr.Fields() {
		fields[k] = v
	}
	detailMsg, err := structpb.NewStruct(fields)
	if err != nil {
		return cerr
	}
	if detail, err := connect.NewErrorDetail(detailMsg); err == nil {
		cerr.AddDetail(detail)
	}
	return cerr
}

// FieldErrors extracts the field to message map from a Connect error
// produced by this package. Clients use it to show inline form errors.
func FieldErrors(err error) map[string]string {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return nil
	}
	out := map[string]string{}
	for _, d := range cerr.Details() {
		v, err := d.Value()
		if err != nil {
			continue
		}
		s, ok := v.(*structpb.Struct)
		if !ok {
			continue
		}
		for k, f := range s.GetFields() {
			out[k] = f.GetStringValue()
		}
	}
	return out
}

// caller returns the authenticated principal or an Unauthenticated error.
func caller(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFrom(ctx)
	if !ok {
		return middleware.Principal{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return p, nil
}
