package cmd

import (
	"context"

	"github.com/nextlevelbuilder/chanmirror/internal/httpapi"
	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
)

// coreAdapter satisfies httpapi.Core by translating between mirror.Core's
// native param/result types and the HTTP-layer request/response shapes,
// keeping internal/httpapi free of a dependency on internal/mirror's
// internal parameter structs.
type coreAdapter struct {
	core *mirror.Core
}

func (a *coreAdapter) Status() httpapi.StatusView {
	s := a.core.Status()
	return httpapi.StatusView{
		Sessions: s.Sessions,
		Pollers:  s.Pollers,
		Jobs:     s.Jobs,
		Dead:     s.Dead,
		Recent:   s.Recent,
		AsOf:     s.AsOf,
	}
}

func (a *coreAdapter) Upsert(ctx context.Context, req httpapi.UpsertJobRequest) (*mirror.Job, error) {
	return a.core.Upsert(ctx, mirror.UpsertParams{
		Source:               req.Source,
		Dest:                 req.Dest,
		PostMode:             req.PostMode,
		PostSessionName:      req.PostSessionName,
		BotToken:             req.BotToken,
		PreferredPollSession: req.PreferredPollSession,
		TextStrip:            req.TextStrip,
		CaptionAppend:        req.CaptionAppend,
	})
}

func (a *coreAdapter) DeleteAllForSource(ctx context.Context, source mirror.ChannelRef) error {
	return a.core.DeleteAllForSource(ctx, source)
}

func (a *coreAdapter) UploadSession(ctx context.Context, name, token string) error {
	return a.core.UploadSession(ctx, name, token)
}

func (a *coreAdapter) DeleteSession(name string) error {
	return a.core.DeleteSession(name)
}

func (a *coreAdapter) DownloadSession(name string) ([]byte, error) {
	return a.core.DownloadSession(name)
}
