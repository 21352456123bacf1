package storeclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erauner12/shopsync/internal/optimistic"
)

// ErrRateLimited is returned when the server answers 429
type ErrRateLimited struct {
	RetryAfter time.Duration // zero when the server sent no Retry-After
}

func (e ErrRateLimited) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RetryDelay satisfies retry.Delayer
func (e ErrRateLimited) RetryDelay() time.Duration { return e.RetryAfter }

// ErrEpochMismatch is returned when the server epoch moved past ours and
// refreshing the session did not help
type ErrEpochMismatch struct {
	ServerEpoch int
}

func (e ErrEpochMismatch) Error() string {
	return fmt.Sprintf("epoch mismatch: server epoch is %d", e.ServerEpoch)
}

// ErrUnauthorized is returned when authentication keeps failing
var ErrUnauthorized = errors.New("authentication failed")

// StatusError is a non-success HTTP response
type StatusError struct {
	Status int
	Code   string // "error" field of the JSON body, if any
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// readStatusError builds a StatusError from a failed response. The body is consumed.
func readStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			se.Code = er.Error
		}
	}
	return se
}

// classify maps transport and HTTP failures onto the controller's taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}

	var opErr *optimistic.OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusNotFound:
			return fmt.Errorf("%w: %s", optimistic.ErrNotFound, se.Error())
		case se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden:
			return optimistic.NewError(optimistic.KindAuth, "session expirée, reconnectez-vous", err)
		case se.Status == http.StatusBadRequest || se.Status == http.StatusUnprocessableEntity:
			return optimistic.NewError(optimistic.KindValidation, validationMessage(se.Code), err)
		case se.Status == http.StatusConflict:
			return optimistic.NewError(optimistic.KindConflict, "conflit avec l'état distant", err)
		case se.Status >= 500:
			return optimistic.NewError(optimistic.KindServer, "erreur serveur", err)
		default:
			return optimistic.NewError(optimistic.KindServer, fmt.Sprintf("réponse inattendue (%d)", se.Status), err)
		}
	}

	if errors.Is(err, ErrUnauthorized) {
		return optimistic.NewError(optimistic.KindAuth, "session expirée, reconnectez-vous", err)
	}

	var rl ErrRateLimited
	if errors.As(err, &rl) {
		return optimistic.NewError(optimistic.KindNetwork, "serveur saturé, réessayez", err)
	}

	var em ErrEpochMismatch
	if errors.As(err, &em) {
		return optimistic.NewError(optimistic.KindConflict, "données réinitialisées sur le serveur", err)
	}

	return optimistic.Classify(err)
}

func validationMessage(code string) string {
	switch code {
	case "invalid_quantity":
		return "la quantité doit être au moins 1"
	case "invalid_price":
		return "prix invalide"
	case "missing_product":
		return "identifiant produit manquant"
	case "":
		return "requête invalide"
	default:
		return code
	}
}
