package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// ParticipantService keeps the local profile cache that matching and
// contact exchange read from.
type ParticipantService struct {
	participants ParticipantRepository
	now          func() time.Time
	logger       *slog.Logger
}

// NewParticipantService wires dependencies for participant operations.
func NewParticipantService(deps Dependencies) *ParticipantService {
	deps = deps.withDefaults()
	return &ParticipantService{participants: deps.Repositories.Participants, now: deps.Now, logger: deps.Logger}
}

// UpsertProfile stores the principal's profile. An active penalty is kept.
func (s *ParticipantService) UpsertProfile(ctx context.Context, principal Principal, input ParticipantInput) (participant Participant, err error) {
	if s == nil {
		err = fmt.Errorf("ParticipantService is nil")
		return
	}
	if s.participants == nil {
		err = fmt.Errorf("participant repository not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ParticipantService", "UpsertProfile", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to upsert participant", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "participant upserted")
	}()

	vErr := validateParticipantInput(input)
	if principal.UserID == "" {
		vErr.add("id", "participant id is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := Participant{
		ID:          principal.UserID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       strings.TrimSpace(input.Email),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		UpdatedAt:   s.now(),
	}
	if upsertErr := s.participants.UpsertParticipant(ctx, candidate); upsertErr != nil {
		err = mapRepoError(upsertErr)
		return
	}

	stored, getErr := s.participants.GetParticipant(ctx, principal.UserID)
	if getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	participant = stored
	return
}

// GetProfile returns the principal's stored profile.
func (s *ParticipantService) GetProfile(ctx context.Context, principal Principal) (Participant, error) {
	if s == nil {
		return Participant{}, fmt.Errorf("ParticipantService is nil")
	}
	if s.participants == nil {
		return Participant{}, fmt.Errorf("participant repository not configured")
	}
	participant, err := s.participants.GetParticipant(ctx, principal.UserID)
	if err != nil {
		return Participant{}, mapRepoError(err)
	}
	return participant, nil
}

func validateParticipantInput(input ParticipantInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.DisplayName) == "" {
		vErr.add("displayName", "display name is required")
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			vErr.add("email", "must be a valid email address")
		}
	}
	vErr.merge(validateCoordinates(input.Latitude, input.Longitude))
	return vErr
}

func validateCoordinates(latitude, longitude *float64) *ValidationError {
	vErr := &ValidationError{}
	if (latitude == nil) != (longitude == nil) {
		vErr.add("location", "latitude and longitude must be provided together")
		return vErr
	}
	if latitude != nil && (*latitude < -90 || *latitude > 90) {
		vErr.add("latitude", "must be between -90 and 90")
	}
	if longitude != nil && (*longitude < -180 || *longitude > 180) {
		vErr.add("longitude", "must be between -180 and 180")
	}
	return vErr
}
