package cli

import (
	"context"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shopsync/internal/notify"
	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/session"
	"github.com/erauner12/shopsync/internal/storeclient"
	"github.com/erauner12/shopsync/internal/summary"
)

// connection is a started SyncStore bound to one server session
type connection struct {
	store    *session.SyncStore
	sessions *storeclient.SessionManager
	rules    summary.Rules
}

// connect authenticates, opens a sync session and loads both collections.
// Notifications are printed to notices.
func (o *RootOptions) connect(ctx context.Context, notices io.Writer) (*connection, error) {
	cfg := o.Config

	var (
		tokens   storeclient.TokenProvider
		debugSub string
		owner    string
	)
	switch {
	case cfg.DevMode:
		debugSub = cfg.DevSubject
		owner = cfg.DevSubject
	case cfg.Auth.Token != "":
		tokens = storeclient.StaticToken(cfg.Auth.Token)
		owner = tokenSubject(cfg.Auth.Token)
	default:
		log.Ctx(ctx).Warn().
			Str("subject", cfg.Auth.Subject).
			Msg("signing tokens with the shared server secret; use SHOPSYNC_TOKEN outside trusted setups")
		tokens = storeclient.NewSignedToken(cfg.Auth.HS256Secret, cfg.Auth.Subject, cfg.TokenTTL())
		owner = cfg.Auth.Subject
	}

	sessions := storeclient.NewSessionManager(cfg.APIBaseURL, tokens, debugSub)
	hc := storeclient.NewHTTPClient(cfg.APIBaseURL, tokens, sessions, debugSub)

	store := session.NewHTTP(hc, session.Options{
		Notifier: &notify.WriterSink{W: notices},
	})
	if err := store.Start(ctx, owner); err != nil {
		_ = sessions.EndSession(ctx)
		return nil, WrapExitError(ExitFailure, "failed to load collections", err)
	}

	return &connection{store: store, sessions: sessions, rules: cfg.Summary}, nil
}

// close ends the local owner and the server session
func (c *connection) close(ctx context.Context) {
	c.store.End()
	if err := c.sessions.EndSession(ctx); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("failed to end sync session")
	}
}

func (c *connection) controller(collection string) *optimistic.Controller {
	if collection == session.WishlistCollection {
		return c.store.Wishlist
	}
	return c.store.Cart
}

// view snapshots a collection with its projected totals
func (c *connection) view(collection string) CollectionView {
	ctrl := c.controller(collection)
	st := ctrl.State()
	return CollectionView{
		Collection: collection,
		Items:      st.Items,
		Summary:    ctrl.Summary(c.rules),
		Conflict:   st.Conflict,
		Error:      st.Error,
	}
}

// tokenSubject reads the subject of a bearer token without verifying it.
// The server verifies; the client only needs a local owner identity.
func tokenSubject(tok string) string {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil || claims.Subject == "" {
		return "token"
	}
	return claims.Subject
}
