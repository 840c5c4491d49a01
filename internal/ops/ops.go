// Package ops is the thin dispatch layer mapping each codec.Action
// variant to the matching Store call, per spec §4.4. Non-domain
// errors (I/O, codec faults surfaced by Store) are returned to the
// caller, which is expected to log and drop the request rather than
// reply to the client — see internal/session.
package ops

import (
	"fmt"

	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/metrics"
	"github.com/adred-codev/kanband/internal/store"
)

// Dispatch routes a decoded Action to the Store and returns the
// Response to send back. A non-nil error means a non-domain fault
// occurred (I/O, codec) and the caller must not reply to the client
// for this request.
func Dispatch(s *store.Store, a codec.Action) (codec.Response, error) {
	resp, err := dispatch(s, a)
	metrics.OperationsTotal.WithLabelValues(actionLabel(a.Kind), outcomeLabel(resp, err)).Inc()
	return resp, err
}

func dispatch(s *store.Store, a codec.Action) (codec.Response, error) {
	switch a.Kind {
	case codec.ActionPost:
		return s.Post(a.Node)
	case codec.ActionUpdate:
		return s.Update(a.Node)
	case codec.ActionDelete:
		return s.Delete(a.Node)
	case codec.ActionList:
		switch a.ListTarget.Kind {
		case codec.ListTargetRoot:
			return s.ListRoot()
		case codec.ListTargetNode:
			return s.List(idspace.ID(a.ListTarget.ID))
		default:
			return codec.Response{}, fmt.Errorf("ops: unknown list target kind %d", a.ListTarget.Kind)
		}
	default:
		return codec.Response{}, fmt.Errorf("ops: unknown action kind %d", a.Kind)
	}
}

func actionLabel(k codec.ActionKind) string {
	switch k {
	case codec.ActionPost:
		return "post"
	case codec.ActionUpdate:
		return "update"
	case codec.ActionDelete:
		return "delete"
	case codec.ActionList:
		return "list"
	default:
		return "unknown"
	}
}

func outcomeLabel(resp codec.Response, err error) string {
	switch {
	case err != nil:
		return "fault"
	case resp.Kind == codec.ResponseErr:
		return "domain_error"
	default:
		return "ok"
	}
}
