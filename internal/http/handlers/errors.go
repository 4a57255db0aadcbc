// Package handlers provides HTTP API handlers for clipforge.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/http/middleware"
	"github.com/clipforge/clipforge/internal/models"
)

// apiError maps an application error to the huma error carrying the
// matching status code. The mapping is exhaustive over the error kinds so
// no failure leaks out as an unclassified 500.
func apiError(err error) error {
	var appErr *models.AppError
	msg := err.Error()
	if e, ok := err.(*models.AppError); ok {
		appErr = e
		msg = appErr.Message
	}

	switch models.KindOf(err) {
	case models.KindValidation:
		return huma.Error400BadRequest(msg)
	case models.KindAuth:
		return huma.Error401Unauthorized(msg)
	case models.KindQuota:
		return huma.Error429TooManyRequests(msg)
	case models.KindNotFound, models.KindSessionNotFound, models.KindMediaSource:
		return huma.Error404NotFound(msg)
	case models.KindExternal:
		return huma.Error502BadGateway(msg)
	case models.KindUnavailable:
		return huma.Error503ServiceUnavailable(msg)
	case models.KindProcessing, models.KindStorage:
		return huma.Error500InternalServerError(msg)
	default:
		return huma.Error500InternalServerError("internal error")
	}
}

// principal returns the authenticated caller stored by the session
// middleware. Routes registered on the API are behind that middleware, so
// a missing principal is a wiring bug surfaced as a 401.
func principal(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return middleware.Principal{}, huma.Error401Unauthorized("not authenticated")
	}
	return p, nil
}

// parseID parses a ULID path parameter.
func parseID(s string) (models.ULID, error) {
	id, err := models.ParseULID(s)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest("invalid ID format", err)
	}
	return id, nil
}

// parseIDs parses a list of ULID strings from a request body.
func parseIDs(raw []string) ([]models.ULID, error) {
	ids := make([]models.ULID, 0, len(raw))
	for _, s := range raw {
		id, err := models.ParseULID(s)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid ID format: "+s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
