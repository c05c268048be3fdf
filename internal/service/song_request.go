package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/errs"
	"github.com/iliyamo/dj-request-booking/internal/model"
)

// SongRequestStore is the subset of the song request repository the
// lifecycle needs. UpdateStatus and DeleteIfStatus are conditional
// writes, mirroring the timeslot store: the status DAG is enforced at the
// storage layer so concurrent DJ actions on the same request cannot both
// apply.
type SongRequestStore interface {
	Create(ctx context.Context, sr *model.SongRequest) error
	GetByID(ctx context.Context, id uint64) (model.SongRequest, error)
	UpdateStatus(ctx context.Context, id uint64, from []string, to string) (bool, error)
	DeleteIfStatus(ctx context.Context, id uint64, expected string) (bool, error)
	ListForDJ(ctx context.Context, djUsername string, window time.Duration) ([]model.SongRequest, error)
}

// DJDirectory resolves a target DJ by username.
type DJDirectory interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// RequestNotifier delivers song request events. Created events go only to
// the owning DJ's registered connections; status events go only to the
// original requester, addressed by correlation token. Both are
// fire-and-forget: a closed connection means the event is silently
// dropped, never queued or retried.
type RequestNotifier interface {
	RequestCreated(djUsername string, r model.SongRequest)
	RequestStatus(requesterToken, event string, r model.SongRequest)
}

// Classifier is the optional external evaluator run at submission time
// when the DJ has AI mode enabled. Implementations call out of process;
// the lifecycle only consumes the verdict.
type Classifier interface {
	Classify(ctx context.Context, r model.SongRequest, prompt string) (accepted bool, reason string, err error)
}

// SubmitPayload is the audience-facing shape of a new song request. At
// least one of Title and Artist must be present; the metadata fields are
// passed through opaquely.
type SubmitPayload struct {
	DJUsername    string
	Title         string
	Artist        string
	RequesterName string
	Genre         string
	TrackID       string
	ImageURL      string
	Popularity    uint32
}

// SongRequestService manages the request lifecycle: audience submission,
// DJ-driven transitions along the status DAG, and targeted notification
// of both parties.
type SongRequestService struct {
	store      SongRequestStore
	djs        DJDirectory
	notifier   RequestNotifier
	classifier Classifier // nil when no evaluator is wired
	window     time.Duration
	log        *zap.Logger
}

// NewSongRequestService wires the lifecycle. classifier may be nil;
// window is the default recency bound for the DJ's active list.
func NewSongRequestService(store SongRequestStore, djs DJDirectory, notifier RequestNotifier, classifier Classifier, window time.Duration, log *zap.Logger) *SongRequestService {
	return &SongRequestService{
		store:      store,
		djs:        djs,
		notifier:   notifier,
		classifier: classifier,
		window:     window,
		log:        log,
	}
}

// Submit creates a song request for the target DJ. The requester's
// correlation token ties the stored row to the submitting connection for
// later status notifications; it is never exposed to any client. The
// created event is delivered only to the target DJ's connections.
func (s *SongRequestService) Submit(ctx context.Context, p SubmitPayload, requesterToken string) (model.SongRequest, error) {
	if strings.TrimSpace(p.DJUsername) == "" ||
		(strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Artist) == "") {
		return model.SongRequest{}, errs.ErrInvalidInput
	}

	dj, err := s.djs.GetByUsername(ctx, p.DJUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SongRequest{}, errs.ErrNotFound
		}
		return model.SongRequest{}, err
	}
	if !dj.Accepting {
		// Requests are closed; nothing is recorded.
		return model.SongRequest{}, errs.ErrConflict
	}

	sr := model.SongRequest{
		DJUsername:     dj.Username,
		Title:          strings.TrimSpace(p.Title),
		Artist:         strings.TrimSpace(p.Artist),
		RequesterToken: requesterToken,
		RequesterName:  strings.TrimSpace(p.RequesterName),
		Status:         model.RequestPending,
		Genre:          p.Genre,
		TrackID:        p.TrackID,
		ImageURL:       p.ImageURL,
		Popularity:     p.Popularity,
	}

	if s.classifier != nil && dj.AIMode {
		accepted, reason, cerr := s.classifier.Classify(ctx, sr, dj.AIPrompt)
		if cerr != nil {
			// Classification is best-effort: leave the request pending.
			s.log.Warn("classifier failed, leaving request pending", zap.Error(cerr))
		} else {
			sr.AIAccepted = &accepted
			sr.AIReason = &reason
			if accepted {
				sr.Status = model.RequestComingUp
			} else {
				sr.Status = model.RequestRejected
			}
		}
	}

	if err := s.store.Create(ctx, &sr); err != nil {
		return model.SongRequest{}, err
	}
	s.log.Info("song request submitted",
		zap.Uint64("request_id", sr.ID),
		zap.String("dj", sr.DJUsername),
		zap.String("status", sr.Status))
	s.notifier.RequestCreated(dj.Username, sr)
	return sr, nil
}

// load fetches the request and enforces that actingDJ owns it.
func (s *SongRequestService) load(ctx context.Context, id uint64, actingDJ string) (model.SongRequest, error) {
	sr, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SongRequest{}, errs.ErrNotFound
		}
		return model.SongRequest{}, err
	}
	if sr.DJUsername != actingDJ {
		s.log.Warn("song request action by non-owner rejected",
			zap.Uint64("request_id", id),
			zap.String("owner", sr.DJUsername))
		return model.SongRequest{}, errs.ErrUnauthorized
	}
	return sr, nil
}

// MarkComingUp transitions pending→coming_up and notifies the requester.
// The notification is a UX nicety: the transition succeeds whether or not
// the requester still has a live connection.
func (s *SongRequestService) MarkComingUp(ctx context.Context, id uint64, actingDJ string) (model.SongRequest, error) {
	sr, err := s.load(ctx, id, actingDJ)
	if err != nil {
		return model.SongRequest{}, err
	}
	won, err := s.store.UpdateStatus(ctx, id, []string{model.RequestPending}, model.RequestComingUp)
	if err != nil {
		return model.SongRequest{}, err
	}
	if !won {
		return model.SongRequest{}, errs.ErrConflict
	}
	sr.Status = model.RequestComingUp
	s.notifier.RequestStatus(sr.RequesterToken, model.RequestComingUp, sr)
	return sr, nil
}

// MarkPlaying consumes a coming_up request: the record is removed and the
// requester is told their song is now playing. Playing is only reachable
// from coming_up; a request still pending yields ErrConflict.
func (s *SongRequestService) MarkPlaying(ctx context.Context, id uint64, actingDJ string) error {
	sr, err := s.load(ctx, id, actingDJ)
	if err != nil {
		return err
	}
	won, err := s.store.DeleteIfStatus(ctx, id, model.RequestComingUp)
	if err != nil {
		return err
	}
	if !won {
		return errs.ErrConflict
	}
	sr.Status = model.RequestPlaying
	s.log.Info("song request played", zap.Uint64("request_id", id), zap.String("dj", actingDJ))
	s.notifier.RequestStatus(sr.RequesterToken, model.RequestPlaying, sr)
	return nil
}

// Reject transitions any non-terminal request to rejected and notifies
// the requester. The row is retained with its terminal status.
func (s *SongRequestService) Reject(ctx context.Context, id uint64, actingDJ string) (model.SongRequest, error) {
	sr, err := s.load(ctx, id, actingDJ)
	if err != nil {
		return model.SongRequest{}, err
	}
	won, err := s.store.UpdateStatus(ctx, id,
		[]string{model.RequestPending, model.RequestComingUp}, model.RequestRejected)
	if err != nil {
		return model.SongRequest{}, err
	}
	if !won {
		return model.SongRequest{}, errs.ErrConflict
	}
	sr.Status = model.RequestRejected
	s.notifier.RequestStatus(sr.RequesterToken, model.RequestRejected, sr)
	return sr, nil
}

// ListActive returns the DJ's own requests within the recency window,
// coming_up rows first and newest-first within each group: the DJ works
// the queue top-down, so already-queued songs stay on top. windowHours
// of zero applies the configured default.
func (s *SongRequestService) ListActive(ctx context.Context, djUsername string, windowHours int) ([]model.SongRequest, error) {
	window := s.window
	if windowHours > 0 {
		window = time.Duration(windowHours) * time.Hour
	}
	out, err := s.store.ListForDJ(ctx, djUsername, window)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		iUp := out[i].Status == model.RequestComingUp
		jUp := out[j].Status == model.RequestComingUp
		if iUp != jUp {
			return iUp
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}
